// Package analysis characterises recorded leg motion.
//
//   - [Phase]: joint angle against joint rate, marking locked samples
//   - [Section]: one joint's state each time another crosses a level
//   - [PowerSpectrum], [DominantFrequency]: frequency content of a joint
//
// All functions work on recorded snapshots, so a run can be analysed after
// it was stored:
//
//	p := analysis.Phase(snaps, 1)
//	fmt.Print(p.ASCII(60, 20))
package analysis
