package profile

// Levels used by the prompt builders. Other values are passed through verbatim.
const (
	LevelNone         = "none"
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"

	RoboticsSimulationOnly = "simulation_only"
	RoboticsRealHardware   = "real_hardware"
)

// SoftwareExperience is the learner's proficiency per language or framework.
type SoftwareExperience struct {
	Python     string `json:"python"`
	Cpp        string `json:"cpp"`
	ROS2       string `json:"ros2"`
	TypeScript string `json:"typescript"`
}

// Profile is a learner's background as collected at signup.
type Profile struct {
	SoftwareExperience SoftwareExperience `json:"software_experience"`
	RoboticsExperience string             `json:"robotics_experience"`
	HardwareAccess     []string           `json:"hardware_access"`
	LearningGoals      []string           `json:"learning_goals"`
}

// Normalized returns a copy with unset levels set to "none" and nil lists
// replaced by empty ones.
func (p Profile) Normalized() Profile {
	n := p
	for _, lvl := range []*string{
		&n.SoftwareExperience.Python,
		&n.SoftwareExperience.Cpp,
		&n.SoftwareExperience.ROS2,
		&n.SoftwareExperience.TypeScript,
		&n.RoboticsExperience,
	} {
		if *lvl == "" {
			*lvl = LevelNone
		}
	}
	n.HardwareAccess = append([]string{}, p.HardwareAccess...)
	n.LearningGoals = append([]string{}, p.LearningGoals...)
	return n
}

// Stored is a profile as persisted for a user.
type Stored struct {
	UserID  string  `json:"user_id"`
	Profile Profile `json:"profile"`
	Hash    string  `json:"profile_hash"`
}
