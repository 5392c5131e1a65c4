package model

import (
	"hash/fnv"
)

// Feature names used by model artifacts.
const (
	FeatureAmount          = "amount"
	FeatureVelocity        = "velocity"
	FeatureLocationChanged = "location_changed"
	FeatureMerchantBucket  = "merchant_bucket"
	FeatureLocationBucket  = "location_bucket"
)

const (
	merchantBuckets = 1000
	locationBuckets = 100
)

// Features is the model input built from a transaction and its velocity signals.
type Features struct {
	Amount          float64
	Velocity        int
	LocationChanged bool
	MerchantBucket  int
	LocationBucket  int
}

// NewFeatures builds the feature vector. Merchant and location labels are
// hashed into fixed buckets so artifacts never see raw strings.
func NewFeatures(amount float64, velocity int, locationChanged bool, merchant, location string) Features {
	return Features{
		Amount:          amount,
		Velocity:        velocity,
		LocationChanged: locationChanged,
		MerchantBucket:  bucket(merchant, merchantBuckets),
		LocationBucket:  bucket(location, locationBuckets),
	}
}

// Value returns the named feature as a float.
func (f Features) Value(name string) (float64, bool) {
	switch name {
	case FeatureAmount:
		return f.Amount, true
	case FeatureVelocity:
		return float64(f.Velocity), true
	case FeatureLocationChanged:
		if f.LocationChanged {
			return 1, true
		}
		return 0, true
	case FeatureMerchantBucket:
		return float64(f.MerchantBucket), true
	case FeatureLocationBucket:
		return float64(f.LocationBucket), true
	default:
		return 0, false
	}
}

func knownFeature(name string) bool {
	_, ok := Features{}.Value(name)
	return ok
}

func bucket(label string, n uint32) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(label))
	return int(h.Sum32() % n)
}
