package devices

import (
	"fmt"

	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/domain"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/ports"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/supervisor"
)

// IC256 strip geometry. Gaussian fit results arrive in strip counts
// centered on the detector and are converted to millimeters.
const (
	meanOffset    = 128.5
	xStripPitch   = 1.65
	yStripPitch   = 1.38
	ErrorGaussian = -10000
)

// ConvertMean converts a gaussian centroid from strip counts to
// millimeters. The firmware's fit-failure sentinel passes through
// unscaled.
func ConvertMean(value float64, xAxis bool) float64 {
	if value == ErrorGaussian {
		return ErrorGaussian
	}
	pitch := yStripPitch
	if xAxis {
		pitch = xStripPitch
	}
	return (value - meanOffset) * pitch
}

// ConvertSigma converts a gaussian width from strip counts to
// millimeters.
func ConvertSigma(value float64, xAxis bool) float64 {
	if value == ErrorGaussian {
		return ErrorGaussian
	}
	pitch := yStripPitch
	if xAxis {
		pitch = xStripPitch
	}
	return value * pitch
}

// IC256Model is the detector catalog for the IC256 strip chamber. The
// gaussian fit channels share the reference conversion clock; dose and
// environment run on their own clocks.
type IC256Model struct{}

func (IC256Model) Columns() []domain.ColumnDefinition {
	return []domain.ColumnDefinition{
		{Name: "Timestamp (s)", Computed: domain.ComputedElapsed},
		{Name: "X centroid (mm)", ChannelPath: IC256GaussAMean, Policy: domain.Synchronized,
			Transform: func(v float64) float64 { return ConvertMean(v, true) }},
		{Name: "X sigma (mm)", ChannelPath: IC256GaussASigma, Policy: domain.Synchronized,
			Transform: func(v float64) float64 { return ConvertSigma(v, true) }},
		{Name: "Y centroid (mm)", ChannelPath: IC256GaussBMean, Policy: domain.Synchronized,
			Transform: func(v float64) float64 { return ConvertMean(v, false) }},
		{Name: "Y sigma (mm)", ChannelPath: IC256GaussBSigma, Policy: domain.Synchronized,
			Transform: func(v float64) float64 { return ConvertSigma(v, false) }},
		{Name: "Dose", ChannelPath: IC256PrimaryDose, Policy: domain.Interpolated},
		{Name: "Channel Sum", ChannelPath: IC256ChannelSum, Policy: domain.Synchronized},
		{Name: "External trigger", ChannelPath: IC256GateSignal, Policy: domain.Asynchronous},
		{Name: "Temperature (℃)", ChannelPath: IC256Temperature, Policy: domain.Interpolated},
		{Name: "Humidity (%rH)", ChannelPath: IC256Humidity, Policy: domain.Interpolated},
		{Name: "Pressure (hPa)", ChannelPath: IC256Pressure, Policy: domain.Interpolated},
		{Name: "Note", Computed: domain.ComputedNote},
	}
}

func (IC256Model) ReferenceChannel() string { return IC256ChannelSum }

func (IC256Model) FieldPaths() map[string]string {
	return map[string]string{
		IC256GaussAMean:  "X centroid (mm)",
		IC256GaussASigma: "X sigma (mm)",
		IC256GaussBMean:  "Y centroid (mm)",
		IC256GaussBSigma: "Y sigma (mm)",
		IC256PrimaryDose: "Dose",
		IC256ChannelSum:  "Channel Sum",
		IC256GateSignal:  "External trigger",
		IC256Temperature: "Temperature (℃)",
		IC256Humidity:    "Humidity (%rH)",
		IC256Pressure:    "Pressure (hPa)",
		IC256EnvState:    "Env connected",
	}
}

// SetupDevice pushes the acquisition rate into the dose converter, the
// integration stage and the main ADC. The rate fields are unsubscribed
// first so the writes do not echo back as data.
func (IC256Model) SetupDevice(s ports.WireSession, rateHz int) error {
	rateFields := map[string]bool{
		IC256DoseSampleFreq:  false,
		IC256IntegrationFreq: false,
		IC256SampleFreq:      false,
	}
	if err := s.SendSubscribeFields(rateFields); err != nil {
		return fmt.Errorf("ic256 setup: %w", err)
	}
	for path := range rateFields {
		if err := s.Field(path).SetValue(rateHz); err != nil {
			return fmt.Errorf("ic256 setup %s: %w", path, err)
		}
	}
	return nil
}

// EnvironmentPaths lists the labeled environment readings captured as
// file metadata at the start of an acquisition.
func (IC256Model) EnvironmentPaths() [][2]string {
	return [][2]string{
		{"temperature", IC256Temperature},
		{"humidity", IC256Humidity},
		{"pressure", IC256Pressure},
	}
}

// IC256Config describes the IC256-42/35 detector variant.
func IC256Config() supervisor.DeviceConfig {
	return supervisor.DeviceConfig{
		Name:           "IC256-42/35",
		Type:           "IC256",
		FilenamePrefix: "IC256_42x35",
		NewModel:       func() ports.DeviceModel { return IC256Model{} },
	}
}
