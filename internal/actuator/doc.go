// Package actuator owns the humidifier and white-noise speaker state.
//
// Controller is the single path to the actuator drivers. Both the
// automation loop and the command router go through it, and it
// serialises their calls so hardware writes never interleave.
//
// Every call performs exactly one driver write, even when the commanded
// state equals the recorded one. The physical device may have drifted
// (power cut, manual switch), and the write puts it back.
package actuator
