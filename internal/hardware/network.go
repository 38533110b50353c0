package hardware

import (
	"context"
	"net"
	"time"
)

// networkPollInterval is how often WaitForNetwork checks the interfaces.
const networkPollInterval = 500 * time.Millisecond

// interfaceAddrs lists local addresses. Replaced in tests.
var interfaceAddrs = net.InterfaceAddrs

// WaitForNetwork blocks until a non-loopback IPv4 address is bound.
//
// Association with the access point is left to the OS (wpa_supplicant or
// NetworkManager). This only waits for its result, with no upper bound,
// logging a "." at debug level on every poll.
//
// Parameters:
//   - ctx: Cancels the wait
//   - logger: Optional; may be nil
//
// Returns:
//   - net.IP: The first usable address found
//   - error: ctx.Err() if cancelled first
func WaitForNetwork(ctx context.Context, logger Logger) (net.IP, error) {
	ticker := time.NewTicker(networkPollInterval)
	defer ticker.Stop()

	for {
		if ip := routableIPv4(); ip != nil {
			if logger != nil {
				logger.Info("network up", "ip", ip.String())
			}
			return ip, nil
		}

		if logger != nil {
			logger.Debug(".")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// routableIPv4 returns the first non-loopback IPv4 address, or nil.
func routableIPv4() net.IP {
	addrs, err := interfaceAddrs()
	if err != nil {
		return nil
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ip := ipNet.IP.To4(); ip != nil && !ip.IsLoopback() && !ip.IsLinkLocalUnicast() {
			return ip
		}
	}
	return nil
}
