package domain

// DriverStatus represents the current status of a driver.
type DriverStatus string

const (
	DriverStatusActive    DriverStatus = "ACTIVE"
	DriverStatusInactive  DriverStatus = "INACTIVE"
	DriverStatusSuspended DriverStatus = "SUSPENDED"
)

// Driver is the driver profile attached to a user account.
type Driver struct {
	ID          string
	UserID      string
	Name        string
	Status      DriverStatus
	TotalRides  int
	TotalEarned float64 // running earnings counter
}

// Vehicle is a vehicle registered to a driver.
type Vehicle struct {
	ID           string
	DriverID     string
	PlateNumber  string
	Model        string
	CapacitySeat int
}
