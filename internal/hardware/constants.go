package hardware

// DoMappings lists the actuator output lines by channel name.
var DoMappings = map[string]struct {
	Chip int
	Line int
}{
	"door_lock_fl":   {1, 4},
	"door_lock_fr":   {1, 5},
	"door_lock_rl":   {1, 6},
	"door_lock_rr":   {1, 7},
	"headlight_low":  {2, 0},
	"headlight_high": {2, 1},
	"turn_left":      {2, 2},
	"turn_right":     {2, 3},
	"interior_light": {2, 4},
}

// DiMappings lists the switch input lines by channel name.
var DiMappings = map[string]struct {
	Chip int
	Line int
}{
	"door_open_fl": {3, 0},
	"door_open_fr": {3, 1},
	"door_open_rl": {3, 2},
	"door_open_rr": {3, 3},
}
