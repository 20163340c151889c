// Package modules ships the builtin component providers. Each provider
// is a thin mapper from an argument mapping onto the XML shape Jenkins
// expects for that plugin; validation of the arguments beyond basic shape
// is left to Jenkins.
package modules

import (
	"github.com/spf13/cast"

	"github.com/zjrosen/loom/internal/defs"
	"github.com/zjrosen/loom/internal/output"
	"github.com/zjrosen/loom/internal/registry"
)

// Register installs every builtin category and provider on r. Categories
// are registered in the order their sections appear in a Jenkins config.
func Register(r *registry.Registry) {
	r.RegisterCategory("trigger", "triggers")
	r.RegisterCategory("wrapper", "wrappers")
	r.RegisterCategory("builder", "builders")
	r.RegisterCategory("publisher", "publishers")

	r.RegisterProvider("builders", "shell", shell)
	r.RegisterProvider("builders", "copyartifact", copyArtifact)
	r.RegisterProvider("wrappers", "timeout", timeout)
	r.RegisterProvider("publishers", "email", email)
	r.RegisterProvider("publishers", "archive", archive)
	r.RegisterProvider("triggers", "timed", timed)
	r.RegisterProvider("triggers", "pollscm", pollSCM)
}

// argMap normalizes a provider argument to a mapping; bare and scalar
// invocations yield an empty one.
func argMap(args any) *defs.Map {
	if m, ok := args.(*defs.Map); ok {
		return m
	}
	return defs.NewMap()
}

func getString(m *defs.Map, key, fallback string) string {
	v, ok := m.Get(key)
	if !ok {
		return fallback
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fallback
}

func getBool(m *defs.Map, key string, fallback bool) bool {
	v, ok := m.Get(key)
	if !ok {
		return fallback
	}
	if b, err := cast.ToBoolE(v); err == nil {
		return b
	}
	return fallback
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// shell accepts either a bare command string or {command: ...}.
func shell(parent *output.Element, args any) error {
	command, ok := args.(string)
	if !ok {
		command = getString(argMap(args), "command", "")
	}
	parent.Child("hudson.tasks.Shell").TextChild("command", command)
	return nil
}

func copyArtifact(parent *output.Element, args any) error {
	m := argMap(args)
	project := getString(m, "project", "")
	if project == "" {
		return defs.Errorf("copyartifact requires a 'project'")
	}
	e := parent.Child("hudson.plugins.copyartifact.CopyArtifact")
	e.TextChild("project", project)
	e.TextChild("filter", getString(m, "filter", ""))
	e.TextChild("target", getString(m, "target", ""))
	e.TextChild("flatten", boolStr(getBool(m, "flatten", false)))
	e.TextChild("optional", boolStr(getBool(m, "optional", false)))
	return nil
}

func timeout(parent *output.Element, args any) error {
	m := argMap(args)
	e := parent.Child("hudson.plugins.build__timeout.BuildTimeoutWrapper")
	e.TextChild("timeoutMinutes", getString(m, "timeout", "3"))
	e.TextChild("failBuild", boolStr(getBool(m, "fail", false)))
	return nil
}

func email(parent *output.Element, args any) error {
	m := argMap(args)
	recipients := getString(m, "recipients", "")
	if recipients == "" {
		return defs.Errorf("email requires 'recipients'")
	}
	e := parent.Child("hudson.tasks.Mailer")
	e.TextChild("recipients", recipients)
	e.TextChild("dontNotifyEveryUnstableBuild",
		boolStr(!getBool(m, "notify-every-unstable-build", true)))
	e.TextChild("sendToIndividuals", boolStr(getBool(m, "send-to-individuals", false)))
	return nil
}

func archive(parent *output.Element, args any) error {
	m := argMap(args)
	artifacts := getString(m, "artifacts", "")
	if artifacts == "" {
		return defs.Errorf("archive requires 'artifacts'")
	}
	e := parent.Child("hudson.tasks.ArtifactArchiver")
	e.TextChild("artifacts", artifacts)
	if excludes := getString(m, "excludes", ""); excludes != "" {
		e.TextChild("excludes", excludes)
	}
	e.TextChild("allowEmptyArchive", boolStr(getBool(m, "allow-empty", false)))
	e.TextChild("onlyIfSuccessful", boolStr(getBool(m, "only-if-success", false)))
	return nil
}

// timed accepts either a bare cron string or {spec: ...}.
func timed(parent *output.Element, args any) error {
	spec, ok := args.(string)
	if !ok {
		spec = getString(argMap(args), "spec", "")
	}
	parent.Child("hudson.triggers.TimerTrigger").TextChild("spec", spec)
	return nil
}

func pollSCM(parent *output.Element, args any) error {
	spec, ok := args.(string)
	if !ok {
		spec = getString(argMap(args), "cron", "")
	}
	parent.Child("hudson.triggers.SCMTrigger").TextChild("spec", spec)
	return nil
}
