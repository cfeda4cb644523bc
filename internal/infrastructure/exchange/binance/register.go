package binance

import "coinfolio/internal/infrastructure/pricefeed"

const ExchangeName = "BINANCE"

func init() {
	pricefeed.Register(ExchangeName, func(wsURL string) pricefeed.Feed {
		return pricefeed.Feed{
			Dialer: NewStreamDialer(wsURL),
			Decode: DecodeTickerFrame,
		}
	})
}
