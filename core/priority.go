package core

// niceValue maps a priority in [MinPriority, MaxPriority] to a Unix nice
// value: NormPriority is 0, each step is two nice levels, higher priority
// is a lower nice value.
func niceValue(priority int) int {
	if priority < MinPriority {
		priority = MinPriority
	}
	if priority > MaxPriority {
		priority = MaxPriority
	}
	return (NormPriority - priority) * 2
}
