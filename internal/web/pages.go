// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package web

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/a-h/templ"

	"github.com/campusdiaries/campusdiaries/internal/auth"
	"github.com/campusdiaries/campusdiaries/internal/flash"
	"github.com/campusdiaries/campusdiaries/internal/identity"
)

// pageData is what every page shows around its body.
type pageData struct {
	Principal *auth.Principal
	Flashes   []flash.Message
}

// pageDataFor drains the flash queue. Only rendered pages consume notices;
// redirects leave them for the next page.
func pageDataFor(ctx context.Context) pageData {
	data := pageData{Principal: identity.CurrentPrincipal(ctx)}
	if q := flash.FromContext(ctx); q != nil {
		data.Flashes = q.DrainAll()
	}
	return data
}

func render(w http.ResponseWriter, r *http.Request, title string, body templ.Component) {
	templ.Handler(layout(title, pageDataFor(r.Context()), body)).ServeHTTP(w, r)
}

// escape is the only place page text and attribute values are escaped.
func escape(s string) string {
	return templ.EscapeString(s)
}

// attr is one attribute; an empty value renders the bare name.
type attr struct {
	name, value string
}

var voidElements = map[string]bool{"meta": true, "input": true}

// el renders tag with attrs around children. Tag and attribute names are
// trusted literals.
func el(tag string, attrs []attr, children ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		open := "<" + tag
		for _, a := range attrs {
			open += " " + a.name
			if a.value != "" {
				open += `="` + escape(a.value) + `"`
			}
		}
		if _, err := io.WriteString(w, open+">"); err != nil {
			return err
		}
		if voidElements[tag] {
			return nil
		}
		if err := group(children...).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</"+tag+">\n")
		return err
	})
}

func text(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, escape(s))
		return err
	})
}

func group(children ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, c := range children {
			if err := c.Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

func layout(title string, data pageData, body templ.Component) templ.Component {
	return group(
		templ.Raw("<!doctype html>\n"),
		el("html", []attr{{"lang", "en"}},
			el("head", nil,
				el("meta", []attr{{"charset", "utf-8"}}),
				el("title", nil, text(title+" | Campus Diaries")),
			),
			el("body", nil,
				nav(data.Principal),
				flashes(data.Flashes),
				body,
			),
		),
	)
}

// flashes shows successes above errors, each group in queue order.
func flashes(msgs []flash.Message) templ.Component {
	grouped := flash.ByCategory(msgs)
	var out []templ.Component
	for _, c := range []flash.Category{flash.Success, flash.Error} {
		for _, m := range grouped[c] {
			out = append(out, el("div", []attr{{"class", "flash flash-" + string(c)}, {"role", "alert"}}, text(m)))
		}
	}
	return group(out...)
}

func link(href, label string) templ.Component {
	return el("a", []attr{{"href", href}}, text(label))
}

func nav(p *auth.Principal) templ.Component {
	if p == nil {
		return el("nav", nil,
			link(PathExplore, "Explore"),
			link(PathSignup, "Sign up"),
			link(PathLogin, "Log in"),
		)
	}
	return el("nav", nil,
		link(PathExplore, "Explore"),
		el("span", []attr{{"class", "user"}}, text("@"+p.Username)),
		el("form", []attr{{"method", "post"}, {"action", PathLogout}},
			el("button", []attr{{"type", "submit"}}, text("Log out")),
		),
	)
}

func field(label, name, kind string) templ.Component {
	attrs := []attr{{"name", name}}
	if kind != "" {
		attrs = append(attrs, attr{"type", kind})
	}
	attrs = append(attrs, attr{"required", ""})
	return el("label", nil, text(label+" "), el("input", attrs))
}

func form(action, submit string, fields ...templ.Component) templ.Component {
	fields = append(fields, el("button", []attr{{"type", "submit"}}, text(submit)))
	return el("form", []attr{{"method", "post"}, {"action", action}}, fields...)
}

func signupForm() templ.Component {
	return group(
		el("h1", nil, text("Sign up")),
		form(PathSignup, "Sign up",
			field("Username", "username", ""),
			field("Email", "email", "email"),
			field("Password", "password", "password"),
		),
	)
}

func loginForm() templ.Component {
	return group(
		el("h1", nil, text("Log in")),
		form(PathLogin, "Log in",
			field("Username or email", "username", ""),
			field("Password", "password", "password"),
		),
	)
}

func exploreBody(p *auth.Principal) templ.Component {
	who := "Browsing as a guest."
	if p != nil {
		who = "Signed in as @" + p.Username + "."
	}
	return group(
		el("h1", nil, text("Explore")),
		el("p", []attr{{"class", "whoami"}}, text(who)),
	)
}

func composeBody(p *auth.Principal) templ.Component {
	return group(
		el("h1", nil, text("New post")),
		el("p", nil, text("Posting as @"+p.Username+".")),
	)
}

func errorBody(status int, message string) templ.Component {
	return group(
		el("h1", nil, text(strconv.Itoa(status))),
		el("p", []attr{{"class", "error"}}, text(message)),
	)
}
