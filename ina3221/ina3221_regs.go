// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ina3221

// Register pointer addresses.
const (
	RegConfig          uint8 = 0x00
	RegShuntVoltage1   uint8 = 0x01
	RegBusVoltage1     uint8 = 0x02
	RegShuntVoltage2   uint8 = 0x03
	RegBusVoltage2     uint8 = 0x04
	RegShuntVoltage3   uint8 = 0x05
	RegBusVoltage3     uint8 = 0x06
	RegCriticalLimit1  uint8 = 0x07
	RegWarningLimit1   uint8 = 0x08
	RegCriticalLimit2  uint8 = 0x09
	RegWarningLimit2   uint8 = 0x0a
	RegCriticalLimit3  uint8 = 0x0b
	RegWarningLimit3   uint8 = 0x0c
	RegShuntVoltageSum uint8 = 0x0d
	RegShuntSumLimit   uint8 = 0x0e
	RegMaskEnable      uint8 = 0x0f
	RegPowerValidUpper uint8 = 0x10
	RegPowerValidLower uint8 = 0x11
	RegManufacturerID  uint8 = 0xfe
	RegDieID           uint8 = 0xff
)

// Configuration register (00h) fields.
const (
	configReset = 1 << 15

	configChannel1 = 1 << 14
	configChannel2 = 1 << 13
	configChannel3 = 1 << 12
	configChannels = configChannel1 | configChannel2 | configChannel3

	configAvgShift = 9
	configAvgMask  = 0x7 << configAvgShift

	configBusCTShift = 6
	configBusCTMask  = 0x7 << configBusCTShift

	configShuntCTShift = 3
	configShuntCTMask  = 0x7 << configShuntCTShift

	configModeMask = 0x7

	// ConfigDefault is the power-on value of the configuration register.
	ConfigDefault uint16 = 0x7127
)

// Mask/Enable register (0Fh) conversion ready flag.
const maskConversionReady = 1 << 0

// Fixed identification words.
const (
	ManufacturerTI uint16 = 0x5449
	DieINA3221     uint16 = 0x3220
)

// Voltage register scale. Both voltage registers hold a signed 13-bit value
// in bits 15..3.
const (
	voltageShift     = 3
	shuntMicroVolts  = 40
	busMilliVolts    = 8
	defaultShuntMOhm = 10
)
