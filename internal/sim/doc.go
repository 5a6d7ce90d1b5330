// Package sim produces synthetic vehicle fixes for bench runs without a
// receiver: a looping figure-eight with parking stops, or a scripted route.
package sim
