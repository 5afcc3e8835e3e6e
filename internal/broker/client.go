// Package broker implements a minimal client for the Interactive Brokers
// TWS/IB Gateway socket API: the v100+ handshake, scanner subscriptions,
// and streaming market-data ticks for scanner results.
//
// The client follows a two-owner-socket pattern: the goroutine that called
// Connect owns the write half and calls the Request*/Cancel* methods
// directly, while a dedicated reader goroutine owns the read half and only
// ever mutates decoded state behind state.mu. Neither goroutine needs to
// coordinate on the socket itself since reads and writes are independent
// syscalls on the same *net.Conn.
package broker

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kyp0717/momentum-scanner/internal/domain"
	"github.com/kyp0717/momentum-scanner/internal/wire"
)

type contractRef struct {
	conID    int64
	symbol   string
	currency string
}

type state struct {
	mu                sync.Mutex
	connected         bool
	serverVersion     int
	results           map[int32]domain.ScanResult
	contracts         map[int32]contractRef
	scannerDone       bool
	scannerParamsXML  *string
	scannerParamsDone bool
	nextReqID         int32
}

// Client is a single TWS session: one TCP connection, one writer, one
// background reader.
type Client struct {
	conn          net.Conn
	w             *bufio.Writer
	state         *state
	connectedPort uint16
	log           *slog.Logger
}

// Connect dials each candidate port in order and returns the first one that
// completes the v100+ handshake and reports nextValidId.
func Connect(ctx context.Context, log *slog.Logger, host string, ports []uint16, clientID int32) (*Client, error) {
	if len(ports) == 0 {
		ports = domain.DefaultPorts
	}
	var lastErr error
	for _, port := range ports {
		addr := fmt.Sprintf("%s:%d", host, port)
		d := net.Dialer{Timeout: 2 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		client, err := handshake(conn, port, clientID, log)
		if err != nil {
			lastErr = err
			conn.Close()
			continue
		}
		log.Info("connected to TWS", slog.Int("port", int(port)))
		return client, nil
	}
	return nil, fmt.Errorf("could not connect on any port (%v): %w", ports, lastErr)
}

func handshake(conn net.Conn, port uint16, clientID int32, log *slog.Logger) (*Client, error) {
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	w := bufio.NewWriter(conn)
	if _, err := w.Write(wire.EncodeHandshake()); err != nil {
		return nil, fmt.Errorf("send handshake: %w", err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flush handshake: %w", err)
	}

	r := bufio.NewReader(conn)
	serverVersionStr, _, err := wire.DecodeHandshakeReply(r)
	if err != nil {
		return nil, fmt.Errorf("read handshake reply: %w", err)
	}
	serverVersion, _ := strconv.Atoi(serverVersionStr)

	if _, err := w.Write(wire.EncodeStartAPI(int(clientID))); err != nil {
		return nil, fmt.Errorf("send start api: %w", err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flush start api: %w", err)
	}

	st := &state{
		serverVersion: serverVersion,
		results:       make(map[int32]domain.ScanResult),
		contracts:     make(map[int32]contractRef),
		nextReqID:     1000,
	}

	conn.SetDeadline(time.Time{})
	go readLoop(r, st, log)

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		st.mu.Lock()
		connected := st.connected
		st.mu.Unlock()
		if connected {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	st.mu.Lock()
	connected := st.connected
	st.mu.Unlock()
	if !connected {
		conn.Close()
		return nil, fmt.Errorf("timeout waiting for nextValidId on port %d", port)
	}

	return &Client{conn: conn, w: w, state: st, connectedPort: port, log: log}, nil
}

func readLoop(r *bufio.Reader, st *state, log *slog.Logger) {
	for {
		fields, err := wire.DecodeFrame(r)
		if err != nil {
			log.Debug("broker reader loop ended", slog.Any("err", err))
			return
		}
		if len(fields) == 0 {
			continue
		}
		processMessage(fields, st, log)
	}
}

func processMessage(fields []string, st *state, log *slog.Logger) {
	switch fields[0] {
	case wire.InNextValidID:
		st.mu.Lock()
		st.connected = true
		st.mu.Unlock()
	case wire.InErrMsg:
		handleErrMsg(fields, st, log)
	case wire.InScannerData:
		handleScannerData(fields, st, log)
	case wire.InScannerParameters:
		if len(fields) >= 3 {
			st.mu.Lock()
			xml := fields[2]
			st.scannerParamsXML = &xml
			st.scannerParamsDone = true
			st.mu.Unlock()
		}
	case wire.InTickPrice:
		handleTickPrice(fields, st)
	case wire.InTickSize:
		handleTickSize(fields, st)
	}
}

func handleErrMsg(fields []string, st *state, log *slog.Logger) {
	if len(fields) < 5 {
		return
	}
	code, _ := strconv.Atoi(fields[3])
	msg := fields[4]
	if code == 502 {
		log.Error("cannot connect to TWS; is TWS/IB Gateway running?")
		return
	}
	if wire.NonfatalErrors[code] {
		return
	}
	reqID, _ := strconv.Atoi(fields[2])
	st.mu.Lock()
	result, ok := st.results[int32(reqID)]
	st.mu.Unlock()
	if ok {
		log.Warn("tws error", slog.String("symbol", result.Symbol), slog.Int("code", code), slog.String("msg", msg))
	} else {
		log.Warn("tws error", slog.Int("code", code), slog.String("msg", msg))
	}
}

// handleScannerData decodes a SCANNER_DATA frame: [type, version, reqId,
// numElements, then 16 fields per element (v3+): rank, conId, symbol,
// secType, lastTradeDate, strike, right, exchange, currency, localSymbol,
// marketName, tradingClass, distance, benchmark, projection, legsStr].
// numElements < 0 signals scannerDataEnd.
func handleScannerData(fields []string, st *state, log *slog.Logger) {
	if len(fields) < 4 {
		return
	}
	version, _ := strconv.Atoi(fields[1])
	numElements, _ := strconv.Atoi(fields[3])

	st.mu.Lock()
	defer st.mu.Unlock()

	if numElements < 0 {
		st.scannerDone = true
		log.Info("scanner results complete", slog.Int("count", len(st.results)))
		return
	}

	stride := 14
	if version >= 3 {
		stride = 16
	}
	idx := 4
	for i := 0; i < numElements; i++ {
		if idx+8 >= len(fields) {
			break
		}
		rank, _ := strconv.Atoi(fields[idx])
		conID, _ := strconv.ParseInt(fields[idx+1], 10, 64)
		symbol := fields[idx+2]
		exchange := "SMART"
		if idx+7 < len(fields) && fields[idx+7] != "" {
			exchange = fields[idx+7]
		}
		currency := "USD"
		if idx+8 < len(fields) && fields[idx+8] != "" {
			currency = fields[idx+8]
		}

		mktReqID := st.nextReqID + int32(rank)
		st.results[mktReqID] = domain.ScanResult{
			Rank:     uint32(rank + 1),
			Symbol:   symbol,
			ConID:    conID,
			Exchange: exchange,
			Currency: currency,
		}
		st.contracts[mktReqID] = contractRef{conID: conID, symbol: symbol, currency: currency}

		idx += stride
	}
}

func handleTickPrice(fields []string, st *state) {
	if len(fields) < 5 {
		return
	}
	reqID, _ := strconv.Atoi(fields[2])
	tickType, _ := strconv.Atoi(fields[3])
	price, err := decimal.NewFromString(fields[4])
	if err != nil || !price.IsPositive() {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	r, ok := st.results[int32(reqID)]
	if !ok {
		return
	}
	switch tickType {
	case wire.TickBid, wire.TickDelayedBid:
		r.Bid = &price
	case wire.TickAsk, wire.TickDelayedAsk:
		r.Ask = &price
	case wire.TickLast, wire.TickDelayedLast:
		r.Last = &price
		if r.Close != nil && r.Close.IsPositive() {
			change := price.Sub(*r.Close)
			pct := change.Div(*r.Close).Mul(decimal.NewFromInt(100))
			r.Change, r.ChangePct = &change, &pct
		}
	case wire.TickClose, wire.TickDelayedClose:
		r.Close = &price
		if r.Last != nil && price.IsPositive() {
			change := r.Last.Sub(price)
			pct := change.Div(price).Mul(decimal.NewFromInt(100))
			r.Change, r.ChangePct = &change, &pct
		}
	}
	st.results[int32(reqID)] = r
}

func handleTickSize(fields []string, st *state) {
	if len(fields) < 5 {
		return
	}
	reqID, _ := strconv.Atoi(fields[2])
	tickType, _ := strconv.Atoi(fields[3])
	if tickType != wire.TickVolume {
		return
	}
	size, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if r, ok := st.results[int32(reqID)]; ok {
		r.Volume = &size
		st.results[int32(reqID)] = r
	}
}

// ConnectedPort reports the TWS port this client negotiated on.
func (c *Client) ConnectedPort() uint16 { return c.connectedPort }

// RequestMarketDataType selects live/delayed/delayed-frozen data (4 =
// delayed-frozen, the only type available outside market hours without a
// live subscription).
func (c *Client) RequestMarketDataType(dataType int) error {
	_, err := c.w.Write(wire.EncodeFrame([]string{wire.OutReqMktDataType, "1", strconv.Itoa(dataType)}))
	if err != nil {
		return err
	}
	return c.w.Flush()
}

// RequestScannerSubscription requests `rows` STK.US.MAJOR scanner rows for
// scanCode, optionally bounded by a price band, plus a fixed 100000-share
// minimum volume filter.
func (c *Client) RequestScannerSubscription(reqID int32, scanCode string, rows uint32, minPrice, maxPrice *decimal.Decimal) error {
	fields := []string{
		wire.OutReqScannerSubscription,
		"4",
		strconv.Itoa(int(reqID)),
		strconv.Itoa(int(rows)),
		"STK",
		"STK.US.MAJOR",
		scanCode,
		// abovePrice, belowPrice, aboveVolume, marketCapAbove, marketCapBelow,
		// moodyRatingAbove, moodyRatingBelow, spRatingAbove, spRatingBelow,
		// maturityDateAbove, maturityDateBelow, couponRateAbove, couponRateBelow,
		// excludeConvertible, averageOptionVolumeAbove, scannerSettingPairs,
		// stockTypeFilter
		"", "", "", "", "", "", "", "", "", "", "", "", "", "", "", "", "",
	}

	filterCount := 1
	if minPrice != nil {
		filterCount++
	}
	if maxPrice != nil {
		filterCount++
	}
	fields = append(fields, strconv.Itoa(filterCount))
	if minPrice != nil {
		fields = append(fields, "priceAbove", minPrice.String())
	}
	if maxPrice != nil {
		fields = append(fields, "priceBelow", maxPrice.String())
	}
	fields = append(fields, "volumeAbove", "100000", "0")

	if _, err := c.w.Write(wire.EncodeFrame(fields)); err != nil {
		return err
	}
	return c.w.Flush()
}

// CancelScannerSubscription cancels an in-flight scanner subscription.
func (c *Client) CancelScannerSubscription(reqID int32) error {
	_, err := c.w.Write(wire.EncodeFrame([]string{wire.OutCancelScannerSubscription, "1", strconv.Itoa(int(reqID))}))
	if err != nil {
		return err
	}
	return c.w.Flush()
}

// RequestScannerParameters asks TWS for the full scanner-parameters XML
// document (the catalog of all available scan codes).
func (c *Client) RequestScannerParameters() error {
	_, err := c.w.Write(wire.EncodeFrame([]string{wire.OutReqScannerParameters, "1"}))
	if err != nil {
		return err
	}
	return c.w.Flush()
}

// RequestMarketData subscribes to streaming ticks for every contract
// discovered by the last scanner subscription.
func (c *Client) RequestMarketData() error {
	c.state.mu.Lock()
	contracts := make(map[int32]contractRef, len(c.state.contracts))
	for k, v := range c.state.contracts {
		contracts[k] = v
	}
	c.state.mu.Unlock()

	for reqID, ref := range contracts {
		fields := []string{
			wire.OutReqMktData, "11", strconv.Itoa(int(reqID)),
			strconv.FormatInt(ref.conID, 10), ref.symbol, "STK",
			"", "", "", "", "SMART", "", ref.currency, "", "", "",
			"0", "0", "",
		}
		if _, err := c.w.Write(wire.EncodeFrame(fields)); err != nil {
			return err
		}
	}
	return c.w.Flush()
}

// CancelMarketData cancels streaming ticks for every subscribed contract.
func (c *Client) CancelMarketData() error {
	c.state.mu.Lock()
	reqIDs := make([]int32, 0, len(c.state.contracts))
	for reqID := range c.state.contracts {
		reqIDs = append(reqIDs, reqID)
	}
	c.state.mu.Unlock()

	for _, reqID := range reqIDs {
		_, err := c.w.Write(wire.EncodeFrame([]string{wire.OutCancelMktData, "2", strconv.Itoa(int(reqID))}))
		if err != nil {
			return err
		}
	}
	return c.w.Flush()
}

// WaitScannerDone polls state until scannerDataEnd arrives or timeout
// elapses. The TWS API has no blocking completion callback over this
// transport, so callers poll with bounded backoff instead of a condvar.
func (c *Client) WaitScannerDone(timeout time.Duration) bool {
	return pollUntil(timeout, func() bool {
		c.state.mu.Lock()
		defer c.state.mu.Unlock()
		return c.state.scannerDone
	})
}

// WaitScannerParams polls state until the scanner-parameters XML arrives.
func (c *Client) WaitScannerParams(timeout time.Duration) bool {
	return pollUntil(timeout, func() bool {
		c.state.mu.Lock()
		defer c.state.mu.Unlock()
		return c.state.scannerParamsDone
	})
}

func pollUntil(timeout time.Duration, done func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if done() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return done()
}

// ScannerParamsXML returns the cached scanner-parameters XML, if fetched.
func (c *Client) ScannerParamsXML() *string {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return c.state.scannerParamsXML
}

// Results returns the current scanner results sorted by rank.
func (c *Client) Results() []domain.ScanResult {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	out := make([]domain.ScanResult, 0, len(c.state.results))
	for _, r := range c.state.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// Disconnect closes the connection. The reader goroutine observes the
// closed socket and exits on its own.
func (c *Client) Disconnect() {
	c.conn.Close()
}
