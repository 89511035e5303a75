package rules

var EnabledQuery = enabledQuery
var FindQuery = findQuery
var ListBuilder = listBuilder
var UpdateSQL = updateSQL
