package observation

import "path/filepath"

// ChannelKey returns the canonical (instrument, interval) key used to
// register and look up a channel, e.g. "BTCUSD_1m".
func ChannelKey(symbol, interval string) string {
	return symbol + "_" + interval
}

// ChannelFileName returns the binary channel file path for (symbol,
// interval) under root.
func ChannelFileName(root, symbol, interval string) string {
	return filepath.Join(root, ChannelKey(symbol, interval)+".bin")
}
