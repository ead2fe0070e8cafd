package l1geom

import "math"

// SphFromRay intersects r with the background sphere of the given radius
// centred on the origin and returns the hit point as normalised spherical
// coordinates in [-1, 1]^2: u from the azimuth and v from the polar angle.
// Origins outside the sphere (or rays that miss) fall back to the ray
// direction itself.
func SphFromRay(r Ray, radius float64) [2]float64 {
	d := r.Dir.Normalize()
	o := r.Origin

	// |o + t d|^2 = radius^2 with |d| = 1.
	b := o.Dot(d)
	c := o.Dot(o) - radius*radius
	disc := b*b - c

	p := d
	if disc >= 0 {
		t := -b + math.Sqrt(disc)
		if t > 0 {
			p = o.Add(d.Scale(t))
		}
	}

	l := p.Length()
	if l == 0 {
		return [2]float64{0, 0}
	}
	theta := math.Acos(clamp(p.Z/l, -1, 1))
	phi := math.Atan2(p.Y, p.X)

	return [2]float64{phi / math.Pi, theta/math.Pi*2 - 1}
}
