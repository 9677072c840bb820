package registry

// Dashboard record keys.
const (
	KeyUsers        = "users"
	KeyAppointments = "appointments"
	KeyHomework     = "homework"
	KeyVideos       = "videos"
	KeyMessages     = "messages"
	KeySettings     = "settings"
	KeyAvailability = "availability"
)

// Default returns the tutoring dashboard registry.
func Default() *Registry {
	return MustNew(
		Record{
			Key:         KeyUsers,
			Default:     []any{},
			Required:    true,
			Validate:    ArrayOf(IsObject),
			Description: "registered students and teachers",
		},
		Record{
			Key:         KeyAppointments,
			Default:     []any{},
			Required:    true,
			Validate:    IsArray,
			Description: "booked lessons",
		},
		Record{
			Key:         KeyHomework,
			Default:     []any{},
			Required:    true,
			Validate:    IsArray,
			Description: "assigned homework",
		},
		Record{
			Key:         KeyVideos,
			Default:     []any{},
			Required:    true,
			Validate:    IsArray,
			Description: "video catalog",
		},
		Record{
			Key:         KeyMessages,
			Default:     []any{},
			Validate:    IsArray,
			Description: "contact messages",
		},
		Record{
			Key:         KeySettings,
			Default:     map[string]any{},
			Validate:    IsObject,
			Description: "site settings",
		},
		Record{
			Key:         KeyAvailability,
			Default:     map[string]any{},
			Validate:    IsObject,
			Description: "teacher availability by weekday",
		},
	)
}
