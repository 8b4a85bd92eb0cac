package pointcloud

// Data describes data associated with a single point within a PointCloud.
type Data interface {
	// HasValue returns whether or not this point has some user data value
	// associated with it, e.g. a sensor intensity.
	HasValue() bool

	// Value returns the user data set value, if it exists.
	Value() int
}

type basicData struct {
	hasValue bool
	value    int
}

// NewBasicData returns a point data with no value.
func NewBasicData() Data {
	return &basicData{}
}

// NewValueData returns a point data with the given value.
func NewValueData(v int) Data {
	return &basicData{hasValue: true, value: v}
}

func (bd *basicData) HasValue() bool {
	return bd.hasValue
}

func (bd *basicData) Value() int {
	return bd.value
}
