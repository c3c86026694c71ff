package common

// Reference speeds in meters per second.
// Used for default thresholds and for building realistic test data.

const SpeedOfWalkingMean = 1.2 // or 4.3 km/h
const SpeedOfRunningMean = 3.35
const SpeedOfCyclingMean = 5.36
const SpeedOfDrivingCityMean = 13.9  // or 50 km/h
const SpeedOfDrivingFreeway = 33.33  // or 120 km/h
const SpeedOfDrivingFlatOut = 83.33  // or 300 km/h; upper bound for road travel
const SpeedOfCommercialFlight = 250.0
const SpeedOfSound = 343.0
