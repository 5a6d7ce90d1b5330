package props

// Property keys.
const (
	// MotionStartType selects the movement test: 0 speed (km/h), 1 distance (m).
	MotionStartType = "motion.start.type"
	// MotionStart is the movement threshold; 0 disables motion events.
	MotionStart = "motion.start"
	// MotionStop is the stop delay in seconds.
	MotionStop = "motion.stop"
	// MotionStopType: 0 after_delay, 1 when_stopped.
	MotionStopType = "motion.stop.type"
	// MotionInMotion is the in-motion event interval in seconds; 0 disables.
	MotionInMotion = "motion.inmotion"
	// MotionDormantInterval is the dormant event interval in seconds; 0 disables.
	MotionDormantInterval = "motion.dormant.interval"
	// MotionDormantCount caps dormant events per stop; 0 is unlimited.
	MotionDormantCount = "motion.dormant.count"
	// MotionExcessSpeed is the excess speed threshold in km/h; 0 disables.
	MotionExcessSpeed = "motion.excess"

	// GPSAccuracy drops fixes with a worse reported accuracy (m); 0 disables.
	GPSAccuracy = "gps.accuracy"

	OdomValue   = "odom.value"
	OdomRefLat  = "odom.ref.lat"
	OdomRefLon  = "odom.ref.lon"
	OdomRefTime = "odom.ref.time"
	// OdomDelta is the minimum movement (m) before distance accumulates.
	OdomDelta = "odom.delta"
	// OdomLimit emits an odometer-limit event every OdomLimit meters; 0 disables.
	OdomLimit    = "odom.limit"
	OdomLimitRef = "odom.limit.ref"
)
