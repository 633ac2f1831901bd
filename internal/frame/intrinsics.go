package frame

import "fmt"

// Intrinsics holds the pinhole camera terms of the 3x3 intrinsics matrix
// supplied per frame by the camera collaborator. Units are pixels.
type Intrinsics struct {
	Fx float64 // focal length x
	Fy float64 // focal length y
	Cx float64 // principal point x
	Cy float64 // principal point y
}

// Validate rejects matrices a reprojection cannot use.
func (in Intrinsics) Validate() error {
	if in.Fx <= 0 {
		return fmt.Errorf("invalid focal length fx = %v", in.Fx)
	}
	if in.Fy <= 0 {
		return fmt.Errorf("invalid focal length fy = %v", in.Fy)
	}
	if in.Cx < 0 {
		return fmt.Errorf("invalid principal point cx = %v", in.Cx)
	}
	if in.Cy < 0 {
		return fmt.Errorf("invalid principal point cy = %v", in.Cy)
	}
	return nil
}
