package arcade

// Rand is the random source behind every draw the service makes.
// *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

type GradeUpResult struct {
	CreateCabinetGrade string
	IsGradeUp          bool
}

// GradeUp draws once from [0,100). A draw below the rule's percentage
// promotes the cabinet to rule.Next.
func GradeUp(r Rand, current string, rule GradeUpRule) GradeUpResult {
	draw := r.Intn(100)
	if draw < rule.Percentage {
		return GradeUpResult{CreateCabinetGrade: rule.Next, IsGradeUp: true}
	}
	return GradeUpResult{CreateCabinetGrade: current, IsGradeUp: false}
}
