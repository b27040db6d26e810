package models

import "github.com/shopspring/decimal"

// SatoshiPerBitcoin is the number of base units in one BTC
const SatoshiPerBitcoin = 100000000

// DisplayPlaces is the rounding applied to converted amounts
const DisplayPlaces = 10

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// ToBTC converts satoshis to BTC, rounded to DisplayPlaces
func ToBTC(satoshi int64) decimal.Decimal {
	return decimal.New(satoshi, -8).Round(DisplayPlaces)
}
