package capability

// Capability ids used by the certificate tool.
const (
	Manage       = "certificate.manage"
	Issue        = "certificate.issue"
	Verify       = "certificate.verify"
	ViewAll      = "certificate.viewall"
	ManageImages = "certificate.image.manage"
)

func init() {
	defs := []*Definition{
		{
			ID:          Manage,
			Component:   "certificate",
			Description: "Create, edit and delete certificate templates",
		},
		{
			ID:          Issue,
			Component:   "certificate",
			Description: "Issue certificates to users",
		},
		{
			ID:          Verify,
			Component:   "certificate",
			Description: "Verify issued certificates by public code",
		},
		{
			ID:          ViewAll,
			Component:   "certificate",
			Description: "View certificates issued to any user",
			DependsOn:   []string{Verify},
		},
		{
			ID:          ManageImages,
			Component:   "certificate",
			Description: "Manage shared certificate images",
			DependsOn:   []string{Manage},
		},
	}

	for _, def := range defs {
		if err := Register(def); err != nil {
			panic(err)
		}
	}
}
