package model

// Built-in artifacts let the service start without a registry directory.
// champion-v1 is the production logistic model; challenger-v1 is the tree
// ensemble evaluated in shadow.
const (
	ChampionVersion   = "champion-v1"
	ChallengerVersion = "challenger-v1"
)

// DefaultRegistry returns a registry holding the built-in artifacts.
func DefaultRegistry() *StaticRegistry {
	return NewStaticRegistry(ChampionArtifact(), ChallengerArtifact())
}

func ChampionArtifact() Artifact {
	return Artifact{
		Name:    "champion",
		Version: ChampionVersion,
		Kind:    KindLogistic,
		Logistic: &LogisticParams{
			Bias: -4.0,
			Weights: map[string]float64{
				FeatureAmount:          0.0004,
				FeatureVelocity:        0.35,
				FeatureLocationChanged: 1.2,
			},
		},
	}
}

func ChallengerArtifact() Artifact {
	return Artifact{
		Name:    "challenger",
		Version: ChallengerVersion,
		Kind:    KindTreeEnsemble,
		Trees: &TreeEnsembleParams{
			BaseMargin: -1.0,
			Trees: []Tree{
				{Nodes: []Node{
					{Feature: FeatureVelocity, Threshold: 4, Left: 1, Right: 4},
					{Feature: FeatureAmount, Threshold: 2000, Left: 2, Right: 3},
					{Leaf: true, Value: -1.5},
					{Leaf: true, Value: 0.5},
					{Feature: FeatureLocationChanged, Threshold: 0.5, Left: 5, Right: 6},
					{Leaf: true, Value: 1.0},
					{Leaf: true, Value: 2.2},
				}},
				{Nodes: []Node{
					{Feature: FeatureAmount, Threshold: 500, Left: 1, Right: 2},
					{Leaf: true, Value: -1.0},
					{Feature: FeatureAmount, Threshold: 5000, Left: 3, Right: 4},
					{Leaf: true, Value: 0.3},
					{Leaf: true, Value: 1.8},
				}},
				{Nodes: []Node{
					{Feature: FeatureMerchantBucket, Threshold: 900, Left: 1, Right: 2},
					{Leaf: true, Value: -0.2},
					{Leaf: true, Value: 0.6},
				}},
			},
		},
	}
}
