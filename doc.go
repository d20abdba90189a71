// Package canhax fingerprints and fuzzes Controller Area Network (CAN)
// devices.
//
// # Workflow
//
// A run has two halves. The fingerprint half reads a candump log and learns,
// for every CAN identifier seen, which payload positions carry decimal
// digits, which carry hex, and which never leave zero. The fuzz half takes
// that document and sends every payload the template allows, one frame at a
// time, paced by a fixed delay:
//
//	canhax fingerprint -i capture.log -o ecu.json -d "Instrument cluster"
//	canhax fuzz -i ecu.json -c can0 --adaptive --timing 2
//	canhax zeroize -c can0
//
// # Packages
//
//   - frame: wire form ("123#00AB") and candump line parsing
//   - capture: reading a whole log with an error budget
//   - fingerprint: templates, the two-pass builder and the JSON document
//   - fuzz: complexity scoring, value-set selection and the odometer generator
//   - dispatch: pacing, retry and cancellation around a transport
//   - transport: cansend, NATS, UDP and WebSocket frame sinks
//   - config, metric, natsclient, errors: ambient plumbing
//
// The fuzz generator never materializes a matrix: a 24-position hex template
// has 16^24 payloads, so frames are produced lazily and a run can be
// interrupted at any point with SIGINT.
package canhax
