package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"medtime-companion/internal/device"
)

// DeviceModel is what the firmware reports in its /ping answer.
const DeviceModel = "ESP8266"

var (
	ErrNotFound       = errors.New("device not found on the local network")
	ErrInvalidAddress = errors.New("local address must be an IPv4 address")
)

// commonOctets are tried one by one before the rest of the subnet.
var commonOctets = []int{100, 3, 2, 1, 101, 50, 10, 20, 30, 99, 254, 4, 5, 11, 12, 13}

// Prober reports whether a device answers at baseURL.
type Prober interface {
	Probe(ctx context.Context, baseURL string) bool
}

// LinkProber probes with a short-lived device link.
type LinkProber struct {
	Timeout time.Duration
}

func (p LinkProber) Probe(ctx context.Context, baseURL string) bool {
	opts := device.DefaultOptions()
	if p.Timeout > 0 {
		opts.StatusTimeout = p.Timeout
	}
	res, err := device.New(baseURL, opts).Ping(ctx)
	return err == nil && res.Pong && res.Device == DeviceModel
}

// Scanner looks for the device on the /24 of the host.
type Scanner struct {
	prober    Prober
	batchSize int
}

func NewScanner(prober Prober) *Scanner {
	return &Scanner{prober: prober, batchSize: 5}
}

// Discover returns the base URL of the first device found on the same /24
// as localIP. Common addresses are probed first, then the remaining hosts
// in small concurrent batches.
func (s *Scanner) Discover(ctx context.Context, localIP string) (string, error) {
	ip := net.ParseIP(localIP).To4()
	if ip == nil || ip.IsUnspecified() {
		return "", ErrInvalidAddress
	}
	prefix := fmt.Sprintf("%d.%d.%d", ip[0], ip[1], ip[2])
	self := int(ip[3])
	urlFor := func(octet int) string { return fmt.Sprintf("http://%s.%d", prefix, octet) }

	for _, octet := range commonOctets {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if octet == self {
			continue
		}
		if s.prober.Probe(ctx, urlFor(octet)) {
			log.Printf("Device found at %s", urlFor(octet))
			return urlFor(octet), nil
		}
	}

	var rest []int
	for octet := 1; octet <= 254; octet++ {
		if octet != self && !slices.Contains(commonOctets, octet) {
			rest = append(rest, octet)
		}
	}

	for start := 0; start < len(rest); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		batch := rest[start:min(start+s.batchSize, len(rest))]
		hits := make([]bool, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, octet := range batch {
			i, octet := i, octet
			g.Go(func() error {
				hits[i] = s.prober.Probe(gctx, urlFor(octet))
				return nil
			})
		}
		_ = g.Wait()

		for i, hit := range hits {
			if hit {
				log.Printf("Device found at %s", urlFor(batch[i]))
				return urlFor(batch[i]), nil
			}
		}
	}
	return "", ErrNotFound
}
