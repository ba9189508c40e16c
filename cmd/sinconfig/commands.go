package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sinmod/sinconfig/internal/config/persist"
	"github.com/sinmod/sinconfig/internal/config/schema"
	"github.com/sinmod/sinconfig/internal/config/store"
	"github.com/sinmod/sinconfig/internal/session"
)

func newShowCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the settings tree with current values",
		Long: `Print the settings tree with current values.

With the watch option enabled (watch = true in sinconfig.toml or
SINCONFIG_WATCH=1) the tree is printed again whenever the document changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := a.open(cmd, true)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close()) }()

			renderTree(a.stdout, s.Schema(), s.Views(), all)
			if !a.opts.Watch {
				return nil
			}
			return a.watch(cmd.Context(), func() {
				fmt.Fprintln(a.stdout)
				renderTree(a.stdout, s.Schema(), s.Views(), all)
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include hidden fields")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the resolved value of a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := a.open(cmd, true)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close()) }()

			v, err := s.Store().Resolve(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, formatValue(v))
			return nil
		},
	}
}

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting and save the document",
		Long: `Change a setting and save the document.

Values are parsed according to the field kind: switches accept
true/false/on/off, sliders a number (clamped to the range), dropdowns an
option index or label, color pickers "#RRGGBB[AA]" or "r,g,b[,a]", and
keybinds a key name.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := a.open(cmd, false)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close()) }()

			if err := s.SetString(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s = %s\n", args[0], valueStyle.Render(formatValue(s.Get(args[0]))))
			return nil
		},
	}
}

func newUnsetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Reset a setting to its default and save the document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := a.open(cmd, false)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close()) }()

			if err := s.Unset(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s = %s\n", args[0], valueStyle.Render(formatValue(s.Get(args[0]))))
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print every resolved setting as a JSON object",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := a.open(cmd, true)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close()) }()

			return writeJSON(a.stdout, s.Settings().Map())
		},
	}
}

func newPressCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "press <button>",
		Short: "Run a button's action",
		Long:  "Run a button's action. The button is named by its title, or by its key if it has one.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := a.open(cmd, true)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close()) }()

			for _, v := range s.Views() {
				f := v.Field
				if f.Kind == schema.KindButton && (f.Title == args[0] || (f.HasKey() && f.Key == args[0])) {
					return s.Press(f)
				}
			}
			return fmt.Errorf("no button named %q", args[0])
		},
	}
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the manifest and document strictly",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if err := a.loadOptions(cmd); err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close()) }()

			m, sch, err := a.buildSchema(true)
			if err != nil {
				return err
			}
			path := a.documentPath(m)

			data, err := persist.NewFile(path).ReadBytes()
			if err != nil {
				return err
			}
			values, err := persist.Decode(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err := store.New(sch).Replace(values); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			fmt.Fprintf(a.stdout, "%s %d fields, %d settings, %d saved values\n",
				valueStyle.Render("ok:"), len(sch.AllFields()), len(sch.Keys()), len(values))
			return nil
		},
	}
}

// renderTree prints categories, subcategories and fields in schema order.
func renderTree(w io.Writer, sch *schema.Schema, views []session.FieldView, all bool) {
	var category, subcategory string
	for _, v := range views {
		if !v.Visible && !all {
			continue
		}
		if v.Category != category {
			if category != "" {
				fmt.Fprintln(w)
			}
			category, subcategory = v.Category, ""
			title := v.Category
			if c := sch.Category(v.Category); c != nil && c.Icon != "" {
				title = c.Icon + " " + title
			}
			fmt.Fprintln(w, titleStyle.Render(title))
		}
		if v.Subcategory != subcategory {
			subcategory = v.Subcategory
			fmt.Fprintln(w, "  "+subtitleStyle.Render(subcategory))
		}

		line := "    " + fieldLine(v)
		if !v.Visible {
			line += " " + mutedStyle.Render("(hidden)")
		}
		fmt.Fprintln(w, line)
	}
}

func fieldLine(v session.FieldView) string {
	f := v.Field
	switch f.Kind {
	case schema.KindButton:
		return buttonStyle.Render("[" + f.Title + "]")
	case schema.KindTextParagraph:
		text := f.Title
		if f.Description != "" {
			text = strings.TrimSpace(text + " " + f.Description)
		}
		return mutedStyle.Render(text)
	}

	value := formatValue(v.Value)
	if f.Kind == schema.KindDropdown {
		if i, ok := v.Value.(int); ok && i >= 0 && i < len(f.Options) {
			value += " (" + f.Options[i] + ")"
		}
	}
	return keyStyle.Render(f.Key) + valueStyle.Render(value)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case schema.Color:
		return fmt.Sprintf("%d,%d,%d,%d", val[0], val[1], val[2], val[3])
	default:
		return fmt.Sprint(val)
	}
}
