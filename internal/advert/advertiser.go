package advert

import (
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
	"github.com/danielpatrickdp/ccs-cadence/internal/pipeline"
)

// #region config

// Config holds the advertisement identity.
type Config struct {
	LocalName string
	CompanyID uint16
}

// DefaultConfig uses the Bluetooth SIG test company id.
func DefaultConfig() Config {
	return Config{
		LocalName: "ccs-tx",
		CompanyID: 0xFFFF,
	}
}

// #endregion config

// #region radio

// Radio is the part of *bluetooth.Advertisement the advertiser drives.
type Radio interface {
	Configure(options bluetooth.AdvertisementOptions) error
	Start() error
	Stop() error
}

// EnableDefault enables the default adapter and returns its advertisement.
func EnableDefault() (*bluetooth.Advertisement, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable BLE adapter: %w (try running with sudo or setcap cap_net_admin+ep)", err)
	}
	return adapter.DefaultAdvertisement(), nil
}

// #endregion radio

// #region advertiser

// BLEAdvertiser is an interval sink that reconfigures the advertisement on
// every cadence change, carrying the encoded snapshot as manufacturer data.
type BLEAdvertiser struct {
	radio Radio
	cfg   Config

	mu      sync.Mutex
	source  func() pipeline.Snapshot
	running bool
	last    Payload
}

// NewBLEAdvertiser wraps radio. source may be nil until SetSource.
func NewBLEAdvertiser(radio Radio, cfg Config, source func() pipeline.Snapshot) *BLEAdvertiser {
	return &BLEAdvertiser{radio: radio, cfg: cfg, source: source}
}

// SetSource attaches the snapshot source.
func (a *BLEAdvertiser) SetSource(source func() pipeline.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.source = source
}

// ApplyInterval implements cadence.Sink. Re-applying the same interval
// restarts the advertisement with a fresh payload.
func (a *BLEAdvertiser) ApplyInterval(m mode.Mode, intervalMs int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := Payload{Mode: m, IntervalMs: intervalMs}
	if a.source != nil {
		p = PayloadFromSnapshot(a.source())
		p.Mode = m
		p.IntervalMs = intervalMs
	}
	return a.apply(p)
}

// Refresh re-advertises the current snapshot at the current interval.
func (a *BLEAdvertiser) Refresh() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running || a.source == nil {
		return nil
	}
	p := PayloadFromSnapshot(a.source())
	p.Mode = a.last.Mode
	p.IntervalMs = a.last.IntervalMs
	return a.apply(p)
}

// Stop halts advertising.
func (a *BLEAdvertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}
	a.running = false
	if err := a.radio.Stop(); err != nil {
		return fmt.Errorf("stop advertising: %w", err)
	}
	return nil
}

// Last returns the most recently advertised payload.
func (a *BLEAdvertiser) Last() Payload {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func (a *BLEAdvertiser) apply(p Payload) error {
	if a.running {
		if err := a.radio.Stop(); err != nil {
			return fmt.Errorf("stop advertising: %w", err)
		}
		a.running = false
	}
	opts := bluetooth.AdvertisementOptions{
		LocalName: a.cfg.LocalName,
		Interval:  bluetooth.NewDuration(time.Duration(p.IntervalMs) * time.Millisecond),
		ManufacturerData: []bluetooth.ManufacturerDataElement{
			{CompanyID: a.cfg.CompanyID, Data: p.Encode()},
		},
	}
	if err := a.radio.Configure(opts); err != nil {
		return fmt.Errorf("configure advertisement: %w", err)
	}
	if err := a.radio.Start(); err != nil {
		return fmt.Errorf("start advertising: %w", err)
	}
	a.running = true
	a.last = p
	return nil
}

// #endregion advertiser
