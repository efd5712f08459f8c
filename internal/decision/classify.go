package decision

import "urlrisk/pkg/domain"

// Classify maps a malicious-probability onto one of the three labels.
// Rules are evaluated in order and the first match wins:
//  1. p >= t.Malicious: malicious
//  2. p <= t.Safe: benign
//  3. otherwise: suspicious
//
// When t.Safe == t.Malicious the suspicious band is empty and every
// probability maps to benign or malicious.
func Classify(p float64, t domain.Thresholds) domain.Classification {
	switch {
	case p >= t.Malicious:
		return domain.ClassificationMalicious
	case p <= t.Safe:
		return domain.ClassificationBenign
	default:
		return domain.ClassificationSuspicious
	}
}
