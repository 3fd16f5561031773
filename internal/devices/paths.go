// Package devices holds the instrument catalogs: field paths, unit
// conversions, column layouts and acquisition setup for each supported
// device type.
package devices

// IC256 field paths. The firmware API serves the device under the bare
// "ic256" name regardless of detector variant.
const (
	IC256PrimaryDose     = "/ic256/dose_adc/channel/value"
	IC256ChannelSum      = "/ic256/adc/channel_sum/value"
	IC256GaussAMean      = "/ic256/adc/gaussian_fit_a/mean/value"
	IC256GaussASigma     = "/ic256/adc/gaussian_fit_a/standard_deviation/value"
	IC256GaussBMean      = "/ic256/adc/gaussian_fit_b/mean/value"
	IC256GaussBSigma     = "/ic256/adc/gaussian_fit_b/standard_deviation/value"
	IC256IntegrationFreq = "/ic256/adc/integration_frequency/value"
	IC256GateSignal      = "/ic256/gate_signal/value"
	IC256SampleFreq      = "/ic256/adc/sample_frequency/value"
	IC256DoseSampleFreq  = "/ic256/dose_adc/sample_frequency/value"
	IC256Temperature     = "/ic256/i2c2/environmental_sensor/temperature/value"
	IC256Humidity        = "/ic256/i2c2/environmental_sensor/humidity/value"
	IC256Pressure        = "/ic256/i2c2/environmental_sensor/pressure/value"
	IC256EnvState        = "/ic256/i2c2/environmental_sensor/state/value"
)

// TX2 field paths.
const (
	TX2Channel5       = "/tx2/adc/channel_5/value"
	TX2Channel1       = "/tx2/adc/channel_1/value"
	TX2FR2            = "/tx2/adc/fr2/value"
	TX2ConversionFreq = "/tx2/adc/conversion_frequency/value"
	TX2SampleFreq     = "/tx2/adc/sample_frequency/value"
)

// DeviceTypePath is the HTTP endpoint that reports the device type,
// used to validate an address before dialing the websocket.
const DeviceTypePath = "/io/admin/device_type/value.json"
