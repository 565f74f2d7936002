package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/angstrom-node/ucpnode/pkg/crypto"
	"github.com/angstrom-node/ucpnode/pkg/fixedpoint"
	"github.com/angstrom-node/ucpnode/pkg/types"
)

func main() {
	privKeyHex := flag.String("key", "", "hex-encoded private key (generates an ephemeral one if empty)")
	assetIn := flag.String("asset-in", "", "address of the asset sold")
	assetOut := flag.String("asset-out", "", "address of the asset bought")
	price := flag.String("price", "1.0", "limit price, T1 per T0")
	amount := flag.Uint64("amount", 0, "order amount")
	standing := flag.Bool("standing", true, "exact-standing (resting) order instead of a flash order")
	flag.Parse()

	var signer *crypto.Signer
	var err error
	if *privKeyHex != "" {
		signer, err = crypto.FromPrivateKeyHex(*privKeyHex)
	} else {
		fmt.Println("generating ephemeral keypair...")
		signer, err = crypto.GenerateKey()
	}
	if err != nil {
		fmt.Printf("key error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("address: %s\n", signer.Address().Hex())

	if *assetIn == "" || *assetOut == "" || *amount == 0 {
		fmt.Println("error: -asset-in, -asset-out, and -amount are required")
		flag.Usage()
		os.Exit(1)
	}

	priceDec, err := decimal.NewFromString(*price)
	if err != nil {
		fmt.Printf("invalid -price: %v\n", err)
		os.Exit(1)
	}
	rayScale := decimal.New(1, 27)
	limitPrice, err := fixedpoint.RayFromBig(priceDec.Mul(rayScale).BigInt())
	if err != nil {
		fmt.Printf("price out of range: %v\n", err)
		os.Exit(1)
	}

	kind := types.KindExactFlash
	if *standing {
		kind = types.KindExactStanding
	}

	order := &types.Order{
		Kind:       kind,
		AssetIn:    common.HexToAddress(*assetIn),
		AssetOut:   common.HexToAddress(*assetOut),
		LimitPrice: limitPrice,
		Amount:     *amount,
		From:       signer.Address(),
		ExactIn:    true,
	}

	eip712Signer := crypto.NewEIP712Signer(crypto.DefaultDomain())
	sig, err := eip712Signer.SignOrder(signer, order)
	if err != nil {
		fmt.Printf("signing error: %v\n", err)
		os.Exit(1)
	}
	order.Signature = sig

	hash := eip712Signer.HashOrder(order)
	fmt.Printf("order hash: %s\n", hash.Hex())
	fmt.Printf("signature: 0x%x\n\n", sig)

	valid, err := eip712Signer.VerifyOrderSignature(order)
	if err != nil {
		fmt.Printf("verify error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("signature valid: %v\n\n", valid)

	out, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		fmt.Printf("marshal error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("signed order (POST this as SubmitOrderRequest.order to /api/v1/orders):")
	fmt.Println(string(out))
}
