package insights

var LatestQuery = latestQuery
var ListBuilder = listBuilder
