package models

// ServiceType is drawn from a small fixed catalog.
type ServiceType string

const (
	ServicePeriodicMaintenance ServiceType = "periodic_maintenance"
	ServiceOilChange           ServiceType = "oil_change"
	ServiceBrake               ServiceType = "brake_service"
	ServiceTire                ServiceType = "tire_service"
	ServiceEngineDiagnostics   ServiceType = "engine_diagnostics"
	ServiceElectrical          ServiceType = "electrical"
	ServiceAirConditioning     ServiceType = "ac_service"
)

var ServiceCatalog = []ServiceType{
	ServicePeriodicMaintenance,
	ServiceOilChange,
	ServiceBrake,
	ServiceTire,
	ServiceEngineDiagnostics,
	ServiceElectrical,
	ServiceAirConditioning,
}

func ParseServiceType(s string) (ServiceType, bool) {
	for _, st := range ServiceCatalog {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}
