package model

// Link is a point-to-point pairing of two towers.
//
// Endpoints are tower IDs rather than embedded towers; callers resolve them
// through the tower registry so a link can never observe a deleted tower.
// TowerA is the tower that was selected first.
type Link struct {
	ID     string
	TowerA string
	TowerB string
}

// References reports whether towerID is one of the link's endpoints.
func (l Link) References(towerID string) bool {
	return l.TowerA == towerID || l.TowerB == towerID
}
