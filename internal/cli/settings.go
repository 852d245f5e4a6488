package cli

import (
	"github.com/joe/lndp/internal/config"
)

// settings prints or changes persisted settings.
func (a *App) settings(cmd *config.SettingsCmd, store *config.Store) error {
	switch {
	case cmd.Key == "":
		current := store.Settings()
		for _, field := range config.Fields {
			a.printf("%s = %s\n", field.Key, field.Get(&current))
		}

		a.printf("# %s\n", store.Path())

		return nil

	case cmd.Clear:
		return store.Set(cmd.Key, "") //nolint:wrapcheck // Already descriptive

	case cmd.Value == "":
		value, err := store.Get(cmd.Key)
		if err != nil {
			return err //nolint:wrapcheck // Already descriptive
		}

		a.printf("%s\n", value)

		return nil

	default:
		return store.Set(cmd.Key, cmd.Value) //nolint:wrapcheck // Already descriptive
	}
}
