package annotation

// Class is one entry of the fixed fault taxonomy used by the detection model.
type Class struct {
	ID   int    `json:"classId"`
	Name string `json:"className"`
}

// The fault taxonomy. IDs match the detection model's class indices.
var (
	ClassFaulty          = Class{ID: 0, Name: "Faulty"}
	ClassLooseJoint      = Class{ID: 1, Name: "faulty_loose_joint"}
	ClassPointOverload   = Class{ID: 2, Name: "faulty_point_overload"}
	ClassPotentialFaulty = Class{ID: 3, Name: "potential_faulty"}
)

var classes = []Class{
	ClassFaulty,
	ClassLooseJoint,
	ClassPointOverload,
	ClassPotentialFaulty,
}

// Classes returns the taxonomy in class-id order.
func Classes() []Class {
	out := make([]Class, len(classes))
	copy(out, classes)
	return out
}

// ClassByID looks up a class by model index.
func ClassByID(id int) (Class, bool) {
	for _, c := range classes {
		if c.ID == id {
			return c, true
		}
	}
	return Class{}, false
}

// ClassByName looks up a class by name.
func ClassByName(name string) (Class, bool) {
	for _, c := range classes {
		if c.Name == name {
			return c, true
		}
	}
	return Class{}, false
}
