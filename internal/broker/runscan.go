package broker

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kyp0717/momentum-scanner/internal/domain"
)

// RunScan connects, runs one scanner subscription to completion, requests
// market data for every hit, waits briefly for ticks, then disconnects and
// returns the rows with whatever ticks arrived, along with the port the
// connection landed on.
func RunScan(ctx context.Context, log *slog.Logger, scannerCode, host string, ports []uint16, clientID int32, rows uint32, minPrice, maxPrice *decimal.Decimal) ([]domain.ScanResult, *uint16) {
	client, err := Connect(ctx, log, host, ports, clientID)
	if err != nil {
		log.Warn("scan connect failed", slog.Any("err", err))
		return nil, nil
	}
	defer client.Disconnect()

	if err := client.RequestMarketDataType(4); err != nil {
		log.Warn("request market data type failed", slog.Any("err", err))
	}

	if err := client.RequestScannerSubscription(1, scannerCode, rows, minPrice, maxPrice); err != nil {
		log.Warn("request scanner subscription failed", slog.Any("err", err))
		return nil, nil
	}

	if !client.WaitScannerDone(30 * time.Second) {
		log.Warn("timeout waiting for scanner results", slog.String("code", scannerCode))
		return nil, nil
	}

	if err := client.RequestMarketData(); err != nil {
		log.Warn("request market data failed", slog.Any("err", err))
	}

	select {
	case <-time.After(5 * time.Second):
	case <-ctx.Done():
	}

	client.CancelMarketData()
	time.Sleep(500 * time.Millisecond)

	results := client.Results()
	port := client.ConnectedPort()
	return results, &port
}

// FetchScannerParams connects just long enough to retrieve the full
// scanner-parameters XML catalog.
func FetchScannerParams(ctx context.Context, log *slog.Logger, host string, ports []uint16, clientID int32) *string {
	client, err := Connect(ctx, log, host, ports, clientID)
	if err != nil {
		log.Warn("scanner params connect failed", slog.Any("err", err))
		return nil
	}
	defer client.Disconnect()

	if err := client.RequestScannerParameters(); err != nil {
		log.Warn("request scanner parameters failed", slog.Any("err", err))
		return nil
	}

	if !client.WaitScannerParams(15 * time.Second) {
		log.Warn("timeout waiting for scanner parameters")
		return nil
	}

	return client.ScannerParamsXML()
}
