package records

var AggregateExpr = aggregateExpr
var ListBuilder = listBuilder
var WindowBuilder = windowBuilder
