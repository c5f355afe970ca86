package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/a-peyrard/blackmagic/slices"
	"github.com/rs/zerolog"
)

var propertyPattern = regexp.MustCompile(`(\w+)=(?:"([^"]*)"|([\w.]+))`)

type InjectAnnotation struct {
	logger      *zerolog.Logger
	description string
	properties  map[string]string
}

var knownInjectProperties = []string{"named", "as"}

// Named is the target name used in logs and metrics.
func (a InjectAnnotation) Named() (named string, found bool) {
	named, found = a.properties["named"]
	return named, found
}

// As is the name of the generated variable holding the injected function.
func (a InjectAnnotation) As() (as string, found bool) {
	as, found = a.properties["as"]
	return as, found
}

func (a InjectAnnotation) UnknownProperties() []string {
	return unknownProperties(a.properties, knownInjectProperties)
}

func parseInjectAnnotation(logger *zerolog.Logger, docText string) InjectAnnotation {
	lines := strings.Split(docText, "\n")

	var descriptionLines []string
	var injectLine string

	for _, line := range lines {
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, injectAnnotationTag) {
			injectLine = line
		} else if line != "" && !strings.HasPrefix(line, "@") {
			descriptionLines = append(descriptionLines, line)
		}
	}

	return InjectAnnotation{
		logger:      logger,
		description: strings.TrimSpace(strings.Join(descriptionLines, "\n")),
		properties:  parseProperties(injectLine, injectAnnotationTag),
	}
}

type DependsAnnotation struct {
	logger     *zerolog.Logger
	properties map[string]string
}

var knownDependsProperties = []string{"factory", "cached", "ref", "async", "default"}

func (a DependsAnnotation) String() string {
	keys := make([]string, 0, len(a.properties))
	for _, key := range knownDependsProperties {
		if _, ok := a.properties[key]; ok {
			keys = append(keys, key)
		}
	}
	return fmt.Sprintf("DependsAnnotation(%s)", strings.Join(slices.Map(keys, func(key string) string {
		return key + "=" + a.properties[key]
	}), " "))
}

// Factory is the function producing the dependency, possibly package qualified.
func (a DependsAnnotation) Factory() (factory string, found bool) {
	factory, found = a.properties["factory"]
	return factory, found && factory != ""
}

func (a DependsAnnotation) Cached() bool {
	return a.boolProperty("cached", true)
}

// Ref reports whether the factory returns a depends.Ref instead of a pointer.
func (a DependsAnnotation) Ref() bool {
	return a.boolProperty("ref", false)
}

func (a DependsAnnotation) Async() bool {
	return a.boolProperty("async", false)
}

func (a DependsAnnotation) AllowDefault() bool {
	return a.boolProperty("default", true)
}

func (a DependsAnnotation) UnknownProperties() []string {
	return unknownProperties(a.properties, knownDependsProperties)
}

func (a DependsAnnotation) boolProperty(key string, fallback bool) bool {
	raw, found := a.properties[key]
	if !found {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		if a.logger != nil {
			a.logger.Warn().Err(err).Str("property", key).Msg("Error parsing property, not a correct bool")
		}
		return fallback
	}
	return value
}

// parseDependsAnnotation reads a parameter comment. The second result is false
// when the comment carries no @depends tag.
func parseDependsAnnotation(logger *zerolog.Logger, comment string) (DependsAnnotation, bool) {
	content := strings.TrimPrefix(comment, "//")
	content = strings.TrimPrefix(content, "/*")
	content = strings.TrimSuffix(content, "*/")
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, dependsAnnotationTag) {
		return DependsAnnotation{properties: make(map[string]string)}, false
	}

	return DependsAnnotation{
		logger:     logger,
		properties: parseProperties(content, dependsAnnotationTag),
	}, true
}

func parseProperties(line string, tag string) map[string]string {
	properties := make(map[string]string)

	if line == "" {
		return properties
	}

	content := strings.TrimPrefix(line, tag)
	content = strings.TrimSpace(content)

	if content == "" {
		return properties
	}

	for _, match := range propertyPattern.FindAllStringSubmatch(content, -1) {
		key := match[1]
		// match[2] is the quoted value, match[3] the bare one
		value := match[2]
		if value == "" {
			value = match[3]
		}
		properties[key] = value
	}

	return properties
}

func unknownProperties(properties map[string]string, known []string) []string {
	var unknown []string
	for key := range properties {
		if slices.IndexFunc(known, func(k string) bool { return k == key }) < 0 {
			unknown = append(unknown, key)
		}
	}
	return unknown
}
