package service

import (
	"strconv"

	"github.com/tybug/snitchvisbot/internal/domain"
	"github.com/tybug/snitchvisbot/internal/queryargs"
	"github.com/tybug/snitchvisbot/internal/render"
)

// Render option defaults, matching the bot's original command defaults.
const (
	defaultSize     = 500
	defaultFPS      = 20
	defaultDuration = 5
	defaultFade     = 10.0
)

// argsFromValues converts parsed flag values into canonical query args.
func argsFromValues(values map[string][]string) (queryargs.Args, error) {
	args := queryargs.Args{}

	if v, ok := values["past"]; ok && len(v) > 0 {
		args.Past = v[0]
	}
	if v, ok := values["start"]; ok && len(v) > 0 {
		args.Start = v[0]
	}
	if v, ok := values["end"]; ok && len(v) > 0 {
		args.End = v[0]
	}
	args.Users = values["users"]
	args.Groups = values["groups"]
	if _, ok := values["all-snitches"]; ok {
		args.AllSnitches = true
	}

	if v, ok := values["bounds"]; ok {
		rect, err := queryargs.ParseRect(v)
		if err != nil {
			return args, err
		}
		args.Bounds = rect
	}

	return args, nil
}

// optionsFromValues converts parsed flag values into renderer options.
func optionsFromValues(values map[string][]string) (render.Options, error) {
	opts := render.Options{
		Size:     defaultSize,
		FPS:      defaultFPS,
		Duration: defaultDuration,
		Fade:     defaultFade,
	}

	var err error
	if opts.Size, err = intValue(values, "size", opts.Size); err != nil {
		return opts, err
	}
	if opts.FPS, err = intValue(values, "fps", opts.FPS); err != nil {
		return opts, err
	}
	if opts.Duration, err = intValue(values, "duration", opts.Duration); err != nil {
		return opts, err
	}
	if v, ok := values["fade"]; ok && len(v) > 0 {
		f, err := strconv.ParseFloat(v[0], 64)
		if err != nil {
			return opts, domain.Validationf("invalid fade `%s`", v[0])
		}
		opts.Fade = f
	}
	if _, ok := values["all-snitches"]; ok {
		opts.AllSnitches = true
	}

	return opts, nil
}

func intValue(values map[string][]string, name string, fallback int) (int, error) {
	v, ok := values[name]
	if !ok || len(v) == 0 {
		return fallback, nil
	}
	n, err := strconv.Atoi(v[0])
	if err != nil {
		return 0, domain.Validationf("invalid %s `%s`", name, v[0])
	}
	return n, nil
}
