package auth

// Known analysis targets. The routing layer interprets these; anything else
// coming back from the verifier is passed through untouched.
const (
	AnalysisTargetCost    = "cost"
	AnalysisTargetLatency = "latency"
	AnalysisTargetQuality = "quality"
)

// RequestContext is the per-request identity and preference bundle derived
// from a successful authorization. It is created exactly once per request,
// never persisted, and never shared across requests.
type RequestContext struct {
	UserID                    string
	UserProviders             []string
	FallbackProviderModelPair string
	AnalysisTarget            string
}

// NewRequestContext builds a RequestContext from a verifier result. A nil
// providers list becomes an empty slice so downstream code can range without
// nil checks.
func NewRequestContext(res *VerifyResult) *RequestContext {
	providers := res.Providers
	if providers == nil {
		providers = []string{}
	}

	return &RequestContext{
		UserID:                    res.UserID,
		UserProviders:             providers,
		FallbackProviderModelPair: res.FallbackProviderModelPair,
		AnalysisTarget:            res.AnalysisTarget,
	}
}
