package wire

// Outgoing (client -> TWS) message type ids.
const (
	OutReqScannerSubscription    = "22"
	OutCancelScannerSubscription = "23"
	OutReqScannerParameters      = "24"
	OutReqMktData                = "1"
	OutCancelMktData             = "2"
	OutReqMktDataType            = "59"
)

// Incoming (TWS -> client) message type ids.
const (
	InTickPrice         = "1"
	InTickSize          = "2"
	InErrMsg            = "4"
	InNextValidID       = "9"
	InScannerData       = "20"
	InScannerParameters = "19"
)

// Tick type ids carried in TICK_PRICE/TICK_SIZE frames.
const (
	TickBid         = 1
	TickAsk         = 2
	TickLast        = 4
	TickVolume      = 8
	TickClose       = 9
	TickDelayedBid  = 66
	TickDelayedAsk  = 67
	TickDelayedLast  = 68
	TickDelayedClose = 75
)

// NonfatalErrors are TWS error codes that are purely informational (farm
// connection notices, delayed-data notices, scanner-cancelled acks) and are
// not logged as failures or allowed to abort an in-flight request. 502 is
// the one exception to the logging rule: the broker logs it as a
// connection failure before the set is consulted.
var NonfatalErrors = map[int]bool{
	162:   true,
	354:   true,
	502:   true,
	2104:  true,
	2106:  true,
	2158:  true,
	2119:  true,
	10167: true,
	10168: true,
	10197: true,
}
