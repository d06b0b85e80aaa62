// Package crm 提供客户关系数据的能力函数：按姓名或编号加载银行客户画像，
// 以及保险客户与保单明细。
//
// 画像数据默认来自内嵌的示例文件，可通过配置目录覆盖。
package crm
