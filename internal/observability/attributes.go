package observability

import "go.opentelemetry.io/otel/attribute"

func attrMethod(method string) attribute.KeyValue {
	return attribute.String("method", method)
}

func attrRoute(route string) attribute.KeyValue {
	return attribute.String("route", route)
}

func attrStatus(status int) attribute.KeyValue {
	return attribute.Int("status", status)
}

func attrDefinition(definition string) attribute.KeyValue {
	return attribute.String("definition", definition)
}
