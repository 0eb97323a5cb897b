// Package hardware builds the sensor and actuator drivers for the
// configured platform.
//
// Two capability sets exist:
//   - raspi: gobot's Raspberry Pi adaptor with an SHT2x humidity and
//     temperature sensor on I2C, relays for humidifier and speaker power
//     and an optional PWM pin for speaker volume
//   - simulated: random readings in a plausible bedroom range with a
//     configurable fault rate, and actuators that only log
//
// The rest of the agent sees only sensor.Driver and the actuator driver
// interfaces, so both sets are interchangeable.
package hardware
