package naming

import (
	"strconv"
	"strings"
)

// A Name is a dot-separated hierarchical name such as "SoC.AlertHandler" or
// "SoC.Uart[1]".
type Name struct {
	Tokens []NameToken
}

// NameToken is one dot-separated element of a Name.
type NameToken struct {
	ElemName string
	Index    []int
}

// ParseName splits a name string into tokens. It panics on unbalanced
// brackets and non-integer indices.
func ParseName(sname string) Name {
	tokens := strings.Split(sname, ".")
	name := Name{Tokens: make([]NameToken, len(tokens))}

	for i, token := range tokens {
		name.Tokens[i] = parseNameToken(token)
	}

	return name
}

func parseNameToken(token string) NameToken {
	bracketMustMatch(token)

	parts := strings.Split(token, "[")
	indices := make([]int, 0, len(parts)-1)

	for _, p := range parts[1:] {
		index, err := strconv.Atoi(strings.TrimSuffix(p, "]"))
		if err != nil {
			panic("name index must be integer")
		}

		indices = append(indices, index)
	}

	return NameToken{ElemName: parts[0], Index: indices}
}

func bracketMustMatch(token string) {
	depth := 0

	for _, c := range token {
		switch c {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				panic("name bracket must match")
			}
		}
	}

	if depth != 0 {
		panic("name bracket must match")
	}
}

// NameMustBeValid panics if the name does not follow the naming convention:
//  1. elements are separated by single dots ("A.B" is valid, "A..B" is not),
//  2. every element starts with a capital letter,
//  3. elements do not contain '_', '-', or quotes,
//  4. elements of a series use square brackets ("Uart[1]").
func NameMustBeValid(name string) {
	defer func() {
		if r := recover(); r != nil {
			panic("name " + name + " is not valid: " + r.(string))
		}
	}()

	for _, token := range ParseName(name).Tokens {
		tokenMustBeValid(token)
	}
}

func tokenMustBeValid(token NameToken) {
	if token.ElemName == "" {
		panic("name element must not be empty")
	}

	if strings.ContainsAny(token.ElemName, "_\"'-") {
		panic("name element must not contain _, -, or quotes")
	}

	if token.ElemName[0] < 'A' || token.ElemName[0] > 'Z' {
		panic("name element must start with a capital letter")
	}
}

// BuildName joins a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// BuildNameWithIndex joins a parent name and an indexed element name.
func BuildNameWithIndex(parentName, elementName string, index int) string {
	return BuildName(parentName, elementName+"["+strconv.Itoa(index)+"]")
}
