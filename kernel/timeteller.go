package kernel

// A TimeTeller reports the current uptime in seconds. The Loop is the
// canonical implementation; observers such as tracers take a TimeTeller so
// that tests can substitute a scripted clock.
type TimeTeller interface {
	Uptime() float64
}
