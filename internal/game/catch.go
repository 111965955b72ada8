package game

var catchTable = [4][3]int{
	//  normal, legendary, mythical
	{50, 25, 15},
	{75, 35, 25},
	{99, 50, 35},
	{100, 90, 65},
}

// CatchThreshold is the exclusive upper bound a 1..100 roll must stay under.
func CatchThreshold(ball int, legendary, mythical bool) int {
	if ball < 0 || ball >= len(catchTable) {
		return 0
	}
	col := 0
	switch {
	case mythical:
		col = 2
	case legendary:
		col = 1
	}
	return catchTable[ball][col]
}

// Catch resolves one throw with ball tier ball and a roll r in [1, 100].
func Catch(ball int, legendary, mythical bool, r int) bool {
	return r < CatchThreshold(ball, legendary, mythical)
}

// BallTier maps a ball name to its tier, or -1.
func BallTier(name string) int {
	for i, b := range Balls {
		if b == name {
			return i
		}
	}
	return -1
}
