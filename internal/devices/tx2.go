package devices

import (
	"fmt"

	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/domain"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/ports"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/supervisor"
)

// tx2ConversionHz is the fixed converter clock for the TX2
// electrometer; only the sample rate follows the acquisition settings.
const tx2ConversionHz = 40000

// TX2Model is the catalog for the TX2 electrometer. Probe channels run
// on the converter clock, so they are interpolated onto the channel 5
// reference rather than index matched.
type TX2Model struct{}

func (TX2Model) Columns() []domain.ColumnDefinition {
	return []domain.ColumnDefinition{
		{Name: "Timestamp (s)", Computed: domain.ComputedElapsed},
		{Name: "Probe A", ChannelPath: TX2Channel5, Policy: domain.Interpolated},
		{Name: "Probe B", ChannelPath: TX2Channel1, Policy: domain.Interpolated},
		{Name: "FR2", ChannelPath: TX2FR2, Policy: domain.Interpolated},
		{Name: "Note", Computed: domain.ComputedNote},
	}
}

func (TX2Model) ReferenceChannel() string { return TX2Channel5 }

func (TX2Model) FieldPaths() map[string]string {
	return map[string]string{
		TX2Channel5: "Probe A",
		TX2Channel1: "Probe B",
		TX2FR2:      "FR2",
	}
}

func (TX2Model) SetupDevice(s ports.WireSession, rateHz int) error {
	rateFields := map[string]bool{
		TX2ConversionFreq: false,
		TX2SampleFreq:     false,
	}
	if err := s.SendSubscribeFields(rateFields); err != nil {
		return fmt.Errorf("tx2 setup: %w", err)
	}
	if err := s.Field(TX2ConversionFreq).SetValue(tx2ConversionHz); err != nil {
		return fmt.Errorf("tx2 setup conversion frequency: %w", err)
	}
	if err := s.Field(TX2SampleFreq).SetValue(rateHz); err != nil {
		return fmt.Errorf("tx2 setup sample frequency: %w", err)
	}
	return nil
}

func TX2Config() supervisor.DeviceConfig {
	return supervisor.DeviceConfig{
		Name:           "TX2",
		Type:           "TX2",
		FilenamePrefix: "TX2",
		NewModel:       func() ports.DeviceModel { return TX2Model{} },
	}
}
