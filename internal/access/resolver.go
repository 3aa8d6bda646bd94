package access

import "time"

// Resolve combines habilitation overrides with the role matrix into an
// effective decision for one access key. It is a pure function: callers load
// the member's habilitations and the matrix entry for (accessKey, roleKey)
// and pass them in.
//
// Precedence: the most recently created habilitation matching accessKey wins.
// A grant allows, a revoke denies, a temporary grant allows only while now is
// before its expiry. Without a matching habilitation the matrix entry's
// Granted flag applies. Without either the access is denied.
func Resolve(now time.Time, accessKey string, habilitations []Habilitation, matrix *MatrixEntry) Decision {
	var winner *Habilitation
	for i := range habilitations {
		h := &habilitations[i]
		if h.AccessKey != accessKey {
			continue
		}
		if winner == nil || h.CreatedAt.After(winner.CreatedAt) {
			winner = h
		}
	}
	if winner != nil {
		switch winner.Type {
		case HabilitationGrant:
			return Decision{Granted: true, Source: DecisionSourceHabilitation}
		case HabilitationRevoke:
			return Decision{Granted: false, Source: DecisionSourceHabilitation}
		case HabilitationTemporary:
			granted := winner.ExpiresAt != nil && now.Before(*winner.ExpiresAt)
			return Decision{Granted: granted, Source: DecisionSourceHabilitation}
		}
	}
	if matrix != nil {
		return Decision{Granted: matrix.Granted, Source: DecisionSourceMatrix}
	}
	return Decision{Granted: false, Source: DecisionSourceDefault}
}
