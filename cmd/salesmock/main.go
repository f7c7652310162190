package main

import (
	"net/http"
	"os"

	"github.com/immutable/checkout-go/internal/config"
	"github.com/immutable/checkout-go/internal/mocksales"
	"go.uber.org/zap"
)

func main() {
	config.Init()

	port := os.Getenv("CHECKOUT_MOCK_PORT")
	if port == "" {
		port = "8080"
	}

	router := mocksales.NewServer(config.Get().Sales.EnvironmentID, catalog()).Router()

	zap.L().Info("Serving mock sales api on :" + port)

	if err := http.ListenAndServe(":"+port, router); err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to start mock sales api")
	}
}

func catalog() []mocksales.Product {
	return []mocksales.Product{
		{
			ID:                "cool-cat",
			Name:              "Cool Cat",
			CollectionAddress: "0x5f2c4e6a9d7b1c3e8f0a2b4c6d8e0f1a3b5c7d9e",
			ContractType:      "ERC721",
			Prices:            map[string]float64{"USDC": 10.5, "ETH": 0.004},
			Stock:             100,
		},
		{
			ID:                "rare-dog",
			Name:              "Rare Dog",
			CollectionAddress: "0x5f2c4e6a9d7b1c3e8f0a2b4c6d8e0f1a3b5c7d9e",
			ContractType:      "ERC721",
			Prices:            map[string]float64{"USDC": 99.0, "ETH": 0.038},
			Stock:             5,
		},
	}
}
