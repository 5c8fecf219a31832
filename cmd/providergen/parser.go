package main

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	providerAnnotationTag   = "@provider"
	injectableAnnotationTag = "@injectable"
	injectAnnotationTag     = "@inject"
)

var (
	propertiesRegexp = regexp.MustCompile(`(\w+)=(?:"([^"]*)"|(\w+))`)

	knownProviderProperties = []string{"token", "multi"}
	knownInjectProperties   = []string{"token", "optional", "skipSelf", "self"}
)

type (
	// ProviderAnnotation is the `@provider` (or `@injectable`) line of a doc comment, and the
	// rest of the comment as description.
	ProviderAnnotation struct {
		logger      *zerolog.Logger
		description string
		properties  map[string]string
	}

	// InjectAnnotation is the `// @inject` comment trailing a factory parameter.
	InjectAnnotation struct {
		logger     *zerolog.Logger
		properties map[string]string
	}
)

func (p ProviderAnnotation) Token() (token string, found bool) {
	token, found = p.properties["token"]
	return token, found
}

func (p ProviderAnnotation) Multi() bool {
	return parseBoolProperty(p.logger, p.properties, "multi")
}

func (p ProviderAnnotation) UnknownProperties() []string {
	return unknownProperties(p.properties, knownProviderProperties)
}

func (a InjectAnnotation) String() string {
	if len(a.properties) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(a.properties))
	for key := range a.properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = fmt.Sprintf("%s=%s", key, a.properties[key])
	}
	return strings.Join(parts, " ")
}

func (a InjectAnnotation) Token() (token string, found bool) {
	token, found = a.properties["token"]
	return token, found
}

func (a InjectAnnotation) Optional() bool {
	return parseBoolProperty(a.logger, a.properties, "optional")
}

func (a InjectAnnotation) SkipSelf() bool {
	return parseBoolProperty(a.logger, a.properties, "skipSelf")
}

func (a InjectAnnotation) Self() bool {
	return parseBoolProperty(a.logger, a.properties, "self")
}

// IsEmpty tells if the parameter needs no modifier.
func (a InjectAnnotation) IsEmpty() bool {
	_, hasToken := a.Token()
	return !hasToken && !a.Optional() && !a.SkipSelf() && !a.Self()
}

func (a InjectAnnotation) UnknownProperties() []string {
	return unknownProperties(a.properties, knownInjectProperties)
}

func parseProviderAnnotation(logger *zerolog.Logger, docText string, tag string) ProviderAnnotation {
	var (
		descriptionLines []string
		annotationLine   string
	)
	for _, line := range strings.Split(docText, "\n") {
		line = strings.TrimSpace(line)

		if hasTag(line, tag) {
			annotationLine = line
		} else if line != "" && !strings.HasPrefix(line, "@") {
			descriptionLines = append(descriptionLines, line)
		}
	}

	return ProviderAnnotation{
		logger:      logger,
		description: strings.TrimSpace(strings.Join(descriptionLines, "\n")),
		properties:  parseProperties(annotationLine, tag),
	}
}

func parseInjectAnnotation(logger *zerolog.Logger, comment string) InjectAnnotation {
	content := strings.TrimPrefix(comment, "//")
	content = strings.TrimSpace(content)
	if !hasTag(content, injectAnnotationTag) {
		return InjectAnnotation{logger: logger, properties: make(map[string]string)}
	}

	return InjectAnnotation{
		logger:     logger,
		properties: parseProperties(content, injectAnnotationTag),
	}
}

// hasTag tells if line starts with tag as a whole word: "@inject" does not match "@injectable".
func hasTag(line string, tag string) bool {
	if !strings.HasPrefix(line, tag) {
		return false
	}
	rest := line[len(tag):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

func parseProperties(line string, tag string) map[string]string {
	properties := make(map[string]string)

	content := strings.TrimSpace(strings.TrimPrefix(line, tag))
	if content == "" {
		return properties
	}

	for _, match := range propertiesRegexp.FindAllStringSubmatch(content, -1) {
		key := match[1]
		// quoted value, or bare word
		value := match[2]
		if value == "" {
			value = match[3]
		}
		properties[key] = value
	}

	return properties
}

func parseBoolProperty(logger *zerolog.Logger, properties map[string]string, name string) bool {
	raw, found := properties[name]
	if !found {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		if logger != nil {
			logger.Warn().Err(err).Msgf("Error parsing %s property: %s is not a bool, ignoring it", name, raw)
		}
		return false
	}
	return value
}

func unknownProperties(properties map[string]string, known []string) []string {
	var unknown []string
	for key := range properties {
		if !slices.Contains(known, key) {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}
