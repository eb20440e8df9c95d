package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"sehri-go/internal/config"
)

// configSetters maps `config set` keys to the field they change.
var configSetters = map[string]func(cfg *config.Config, v string) error{
	"timezone": func(cfg *config.Config, v string) error { cfg.Timezone = v; return nil },
	"locale":   func(cfg *config.Config, v string) error { cfg.Locale = v; return nil },
	"location.city": func(cfg *config.Config, v string) error {
		cfg.Location.City = v
		return nil
	},
	"location.coordinates": setCoordinates,
	"location.use_live":    boolSetter(func(cfg *config.Config, b bool) { cfg.Location.UseLive = b }),
	"location.permission": func(cfg *config.Config, v string) error {
		cfg.Location.Permission = v
		return nil
	},
	"schedule.method":            intSetter(func(cfg *config.Config, n int) { cfg.Schedule.Method = n }),
	"schedule.school":            intSetter(func(cfg *config.Config, n int) { cfg.Schedule.School = n }),
	"schedule.imsak_offset_min":  intSetter(func(cfg *config.Config, n int) { cfg.Schedule.ImsakOffsetMin = n }),
	"schedule.reminder_lead_min": intSetter(func(cfg *config.Config, n int) { cfg.Schedule.ReminderLeadMin = n }),
	"schedule.hijri_adjustment":  intSetter(func(cfg *config.Config, n int) { cfg.Schedule.HijriAdjustment = n }),
	"store.type": func(cfg *config.Config, v string) error {
		cfg.Store.Type = v
		return nil
	},
	"store.encrypted": boolSetter(func(cfg *config.Config, b bool) { cfg.Store.Encrypted = b }),
	"notifier.type": func(cfg *config.Config, v string) error {
		cfg.Notifier.Type = v
		return nil
	},
	"notifier.telegram_chat_id": func(cfg *config.Config, v string) error {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id %q", v)
		}
		cfg.Notifier.TelegramChatID = id
		return nil
	},
	"server.listen": func(cfg *config.Config, v string) error {
		cfg.Server.Listen = v
		return nil
	},
	"server.refresh_cron": func(cfg *config.Config, v string) error {
		cfg.Server.RefreshCron = v
		return nil
	},
}

func setConfigValue(cfg *config.Config, key, value string) error {
	set, ok := configSetters[key]
	if !ok {
		return fmt.Errorf("unknown key %q (known keys: %s)", key, settableKeys())
	}
	return set(cfg, strings.TrimSpace(value))
}

func settableKeys() string {
	keys := make([]string, 0, len(configSetters))
	for k := range configSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// setCoordinates parses "lat,lon"; an empty value clears manual coordinates.
func setCoordinates(cfg *config.Config, v string) error {
	if v == "" {
		cfg.Location.Latitude, cfg.Location.Longitude = 0, 0
		return nil
	}
	lat, lon, ok := strings.Cut(v, ",")
	if !ok {
		return fmt.Errorf("coordinates must be lat,lon")
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return fmt.Errorf("invalid latitude %q", lat)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return fmt.Errorf("invalid longitude %q", lon)
	}
	cfg.Location.Latitude, cfg.Location.Longitude = la, lo
	return nil
}

func intSetter(apply func(cfg *config.Config, n int)) func(*config.Config, string) error {
	return func(cfg *config.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid number %q", v)
		}
		apply(cfg, n)
		return nil
	}
}

func boolSetter(apply func(cfg *config.Config, b bool)) func(*config.Config, string) error {
	return func(cfg *config.Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", v)
		}
		apply(cfg, b)
		return nil
	}
}
