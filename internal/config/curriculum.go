package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CurriculumDay describes one day of the sprint: the ordered checklist
// items and how many of them must be complete before the day counts as
// done for the checklist-derived read path.
type CurriculumDay struct {
	Day      int      `mapstructure:"day"`
	Title    string   `mapstructure:"title"`
	Items    []string `mapstructure:"items"`
	Required int      `mapstructure:"required"`
}

type Curriculum struct {
	Days []CurriculumDay `mapstructure:"days"`
}

// RequiredItems reports the required completion count for a day. A day
// without an explicit required value needs every listed item.
func (c Curriculum) RequiredItems(day int) int {
	for _, d := range c.Days {
		if d.Day != day {
			continue
		}
		if d.Required > 0 {
			return d.Required
		}
		return len(d.Items)
	}
	return 0
}

func (c Curriculum) ItemIDs(day int) []string {
	for _, d := range c.Days {
		if d.Day == day {
			return d.Items
		}
	}
	return nil
}

func (c Curriculum) LastDay() int {
	last := 0
	for _, d := range c.Days {
		if d.Day > last {
			last = d.Day
		}
	}
	return last
}

func DefaultCurriculum() Curriculum {
	days := make([]CurriculumDay, 0, 8)
	days = append(days, CurriculumDay{
		Day:   0,
		Title: "Orientation",
		Items: []string{"watch-welcome", "join-discord", "set-goal"},
	})
	titles := []string{
		"Find Your Idea",
		"Validate Demand",
		"Build the Offer",
		"Create the Asset",
		"Set Up Delivery",
		"Launch",
		"First Sales",
	}
	itemCounts := []int{4, 4, 5, 5, 4, 5, 4}
	for i, title := range titles {
		day := i + 1
		items := make([]string, 0, itemCounts[i])
		for n := 1; n <= itemCounts[i]; n++ {
			items = append(items, fmt.Sprintf("day%d-task%d", day, n))
		}
		days = append(days, CurriculumDay{Day: day, Title: title, Items: items})
	}
	return Curriculum{Days: days}
}

// CurriculumHolder serves the current curriculum definition and hot
// reloads it when curriculum.yml changes on disk. It is the single
// source of truth for per-day required-item counts; nothing else in the
// codebase hardcodes them.
type CurriculumHolder struct {
	current atomic.Value // holds Curriculum
}

func NewCurriculumHolder(log *zap.Logger) (*CurriculumHolder, error) {
	v := viper.New()

	v.SetConfigName("curriculum")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/sprintline/config")
	v.AddConfigPath("/etc/sprintline")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SPRINTLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultCurriculum()
		v.SetDefault("curriculum.days", defaults.Days)
	}

	var cur Curriculum
	if err := v.UnmarshalKey("curriculum", &cur); err != nil {
		return nil, err
	}
	if len(cur.Days) == 0 {
		cur = DefaultCurriculum()
	}
	if err := validateCurriculum(cur); err != nil {
		return nil, err
	}

	holder := &CurriculumHolder{}
	holder.current.Store(cur)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Curriculum
		if err := v.UnmarshalKey("curriculum", &updated); err != nil {
			log.Warn("curriculum reload failed", zap.Error(err))
			return
		}
		if err := validateCurriculum(updated); err != nil {
			log.Warn("invalid curriculum ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("curriculum reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticCurriculumHolder wraps a fixed curriculum, for tests.
func NewStaticCurriculumHolder(cur Curriculum) *CurriculumHolder {
	holder := &CurriculumHolder{}
	holder.current.Store(cur)
	return holder
}

func (h *CurriculumHolder) Get() Curriculum {
	return h.current.Load().(Curriculum)
}

func validateCurriculum(cur Curriculum) error {
	if len(cur.Days) == 0 {
		return errors.New("curriculum.days cannot be empty")
	}
	seen := make(map[int]bool, len(cur.Days))
	for _, d := range cur.Days {
		if d.Day < 0 {
			return fmt.Errorf("curriculum day %d out of range", d.Day)
		}
		if seen[d.Day] {
			return fmt.Errorf("curriculum day %d defined twice", d.Day)
		}
		seen[d.Day] = true
		if d.Required > len(d.Items) {
			return fmt.Errorf("curriculum day %d requires %d items but lists %d", d.Day, d.Required, len(d.Items))
		}
	}
	return nil
}
