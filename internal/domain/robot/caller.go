package robot

import "fmt"

// Caller identifies who issued a shipment. It disambiguates picking from
// delivering when a robot reaches the order destination.
type Caller string

const (
	CallerOrdering  Caller = "ordering"
	CallerWarehouse Caller = "warehouse"
)

func (c Caller) String() string {
	return string(c)
}

// CallerForShipment maps a shipment's caller tag to a Caller. Tags listed in
// orderingList are treated as ordering, everything else as warehouse.
func CallerForShipment(tag string, orderingList []string) Caller {
	for _, v := range orderingList {
		if tag == v {
			return CallerOrdering
		}
	}
	return CallerWarehouse
}

// ParseCaller converts a stored caller attribute back to a Caller.
func ParseCaller(v string) (Caller, error) {
	switch Caller(v) {
	case CallerOrdering:
		return CallerOrdering, nil
	case CallerWarehouse:
		return CallerWarehouse, nil
	}
	return "", fmt.Errorf("%q is not a caller", v)
}
